// Package mailer sends outbound email through an HTTP email API
// (Resend-compatible JSON contract). Delivery failures are surfaced to the
// caller, which records them as soft errors; they never revert a domain
// mutation.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds email delivery configuration.
type Config struct {
	// BaseURL is the email API endpoint base.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates API calls.
	APIKey string `yaml:"api_key"`

	// From is the sender address for all outbound mail.
	From string `yaml:"from"`
}

// Attachment is one file attached to an email.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Email is one outbound message.
type Email struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender is the interface the dispatcher depends on.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// HTTPMailer implements Sender over the JSON API.
type HTTPMailer struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an HTTP mailer.
func New(cfg Config, logger *slog.Logger) *HTTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPMailer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "mailer"),
	}
}

// Configured reports whether the mailer can deliver mail.
func (m *HTTPMailer) Configured() bool {
	return m.cfg.APIKey != "" && m.cfg.From != ""
}

type apiAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
}

type sendRequest struct {
	From        string          `json:"from"`
	To          []string        `json:"to"`
	Subject     string          `json:"subject"`
	Text        string          `json:"text,omitempty"`
	HTML        string          `json:"html,omitempty"`
	Attachments []apiAttachment `json:"attachments,omitempty"`
}

// Send delivers one email. Returns an error on any failure; the caller
// decides whether that is soft or hard.
func (m *HTTPMailer) Send(ctx context.Context, email *Email) error {
	if !m.Configured() {
		return fmt.Errorf("mailer not configured")
	}
	if email.To == "" {
		return fmt.Errorf("missing recipient")
	}

	req := sendRequest{
		From:    m.cfg.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	}
	for _, att := range email.Attachments {
		req.Attachments = append(req.Attachments, apiAttachment{
			Filename: att.Filename,
			Content:  base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send email: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	m.logger.Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}
