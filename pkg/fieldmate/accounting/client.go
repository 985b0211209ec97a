// Package accounting provides the client for mirroring invoice state into an
// external accounting system (Xero-style JSON API). Sync is best-effort by
// contract: callers record failures on the local invoice and carry on; a sync
// error never blocks or reverts a local mutation.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds accounting integration configuration.
type Config struct {
	// BaseURL is the accounting API endpoint base.
	BaseURL string `yaml:"base_url"`

	// AccessToken authenticates API calls. Resolved at startup; refresh is
	// handled outside the core.
	AccessToken string `yaml:"access_token"`

	// TenantID is the connected organisation. The deployment supports one
	// connected tenant; it is carried in an explicit Session rather than
	// global state so tests and future multi-tenant work stay isolated.
	TenantID string `yaml:"tenant_id"`
}

// Session is the explicit tenant binding passed into every call.
type Session struct {
	TenantID    string
	AccessToken string
}

// Active reports whether the session is usable for API calls.
func (s *Session) Active() bool {
	return s != nil && s.TenantID != "" && s.AccessToken != ""
}

// SessionFromConfig builds the deployment's session, or nil when the
// integration is not configured.
func SessionFromConfig(cfg Config) *Session {
	if cfg.TenantID == "" || cfg.AccessToken == "" {
		return nil
	}
	return &Session{TenantID: cfg.TenantID, AccessToken: cfg.AccessToken}
}

// ErrorKind categorizes API failures.
type ErrorKind int

const (
	ErrNetwork ErrorKind = iota
	ErrAuthExpired
	ErrPermissionDenied
	ErrBadRequest
	ErrNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrAuthExpired:
		return "auth_expired"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrBadRequest:
		return "bad_request"
	case ErrNotFound:
		return "not_found"
	default:
		return "network"
	}
}

// Error is a categorized accounting API failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("accounting %s: %s", e.Kind, e.Message)
}

// KindOf returns the error's kind, or ErrNetwork for non-API errors.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ErrNetwork
}

// LineItem is one billed line sent to the accounting system.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
}

// InvoiceParams is the plain parameter object for invoice operations.
type InvoiceParams struct {
	Reference   string     `json:"reference"`
	ClientName  string     `json:"contact_name"`
	Amount      float64    `json:"amount"`
	DueDate     time.Time  `json:"due_date"`
	Description string     `json:"description,omitempty"`
	LineItems   []LineItem `json:"line_items,omitempty"`
}

// InvoiceResult is the external system's view of the invoice after a call.
type InvoiceResult struct {
	InvoiceID string  `json:"invoice_id"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
}

// Client is the interface the dispatcher depends on.
type Client interface {
	CreateInvoice(ctx context.Context, session *Session, params InvoiceParams) (*InvoiceResult, error)
	UpdateInvoice(ctx context.Context, session *Session, invoiceID string, params InvoiceParams) (*InvoiceResult, error)
	MarkInvoiceAsPaid(ctx context.Context, session *Session, invoiceID string, paidAt time.Time, amount float64) (*InvoiceResult, error)
}

// HTTPClient implements Client over the JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates an accounting API client.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.xero.com/api.xro/2.0"
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "accounting"),
	}
}

// CreateInvoice creates the invoice in the external system.
func (c *HTTPClient) CreateInvoice(ctx context.Context, session *Session, params InvoiceParams) (*InvoiceResult, error) {
	return c.call(ctx, session, http.MethodPost, "/invoices", params)
}

// UpdateInvoice updates an existing external invoice.
func (c *HTTPClient) UpdateInvoice(ctx context.Context, session *Session, invoiceID string, params InvoiceParams) (*InvoiceResult, error) {
	return c.call(ctx, session, http.MethodPut, "/invoices/"+invoiceID, params)
}

// MarkInvoiceAsPaid records a full payment against an external invoice.
func (c *HTTPClient) MarkInvoiceAsPaid(ctx context.Context, session *Session, invoiceID string, paidAt time.Time, amount float64) (*InvoiceResult, error) {
	payload := map[string]any{
		"invoice_id": invoiceID,
		"date":       paidAt.Format("2006-01-02"),
		"amount":     amount,
	}
	return c.call(ctx, session, http.MethodPost, "/payments", payload)
}

func (c *HTTPClient) call(ctx context.Context, session *Session, method, path string, payload any) (*InvoiceResult, error) {
	if !session.Active() {
		return nil, &Error{Kind: ErrAuthExpired, Message: "no active session"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Xero-Tenant-Id", session.TenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, string(respBody))
	}

	var result InvoiceResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: ErrBadRequest, StatusCode: resp.StatusCode, Message: "unparseable response: " + err.Error()}
	}
	c.logger.Debug("accounting call ok", "method", method, "path", path, "status", result.Status)
	return &result, nil
}

func classifyStatus(status int, body string) *Error {
	kind := ErrNetwork
	switch {
	case status == http.StatusUnauthorized:
		kind = ErrAuthExpired
	case status == http.StatusForbidden:
		kind = ErrPermissionDenied
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status >= 400 && status < 500:
		kind = ErrBadRequest
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{Kind: kind, StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, body)}
}
