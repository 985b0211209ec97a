// Package tts converts between text and speech for voice-originated turns.
// The core only decides that a reply should be spoken; the channel decides
// how to deliver the audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Config holds text-to-speech configuration.
type Config struct {
	// Enabled turns voice replies on.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the OpenAI-compatible endpoint base.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates API calls.
	APIKey string `yaml:"api_key"`

	// Model is the TTS model (default "tts-1").
	Model string `yaml:"model"`

	// Voice is the default voice (default "nova").
	Voice string `yaml:"voice"`
}

// Provider is the interface for TTS backends.
type Provider interface {
	// Synthesize converts text to audio. Returns audio bytes, MIME type,
	// and error.
	Synthesize(ctx context.Context, text, voice string) ([]byte, string, error)
}

// Transcriber is the interface for speech-to-text backends.
type Transcriber interface {
	// Transcribe converts a voice note to text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// OpenAIProvider implements TTS via the OpenAI speech API.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAI TTS provider.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize converts text to audio. Returns Opus audio, suitable for
// voice notes on WhatsApp.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = "nova"
	}

	// TTS has a 4096 char limit.
	if len(text) > 4096 {
		text = text[:4093] + "..."
	}

	payload := map[string]any{
		"model":           p.model,
		"input":           text,
		"voice":           voice,
		"response_format": "opus",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("tts: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("tts: reading audio: %w", err)
	}
	return audio, "audio/ogg", nil
}

// Transcribe converts a voice note to text via the transcription API.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	filename := "voice.ogg"
	if strings.Contains(mimeType, "mp4") || strings.Contains(mimeType, "m4a") {
		filename = "voice.m4a"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("tts: building form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("tts: writing audio: %w", err)
	}
	if err := form.WriteField("model", "whisper-1"); err != nil {
		return "", fmt.Errorf("tts: building form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("tts: building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("tts: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("tts: decoding transcript: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
