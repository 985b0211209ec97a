package assistant

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/scheduler"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/tts"
)

// Config holds all FieldMate configuration.
type Config struct {
	// Name is the assistant name shown in replies.
	Name string `yaml:"name"`

	// Model is the LLM model to use (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// API configures the LLM provider endpoint.
	API APIConfig `yaml:"api"`

	// HistoryLimit caps how many prior messages are sent to the model per
	// turn. 0 means the default (30).
	HistoryLimit int `yaml:"history_limit"`

	Store      store.Config      `yaml:"store"`
	Gateway    GatewayConfig     `yaml:"gateway"`
	WhatsApp   WhatsAppConfig    `yaml:"whatsapp"`
	Accounting accounting.Config `yaml:"accounting"`
	Mailer     mailer.Config     `yaml:"mailer"`
	TTS        tts.Config        `yaml:"tts"`
	Scheduler  scheduler.Config  `yaml:"scheduler"`
}

// WhatsAppConfig holds the WhatsApp channel settings. It mirrors the channel
// adapter's own config struct; the core cannot import the adapter package
// (the channel layer sits above the core), so the command layer maps this
// into it at startup.
type WhatsAppConfig struct {
	// Enabled turns the channel on.
	Enabled bool `yaml:"enabled"`

	// SessionPath is the SQLite database file for session persistence.
	SessionPath string `yaml:"session_path"`

	// DeviceName is shown in the WhatsApp linked devices list.
	DeviceName string `yaml:"device_name"`

	// ReconnectBackoff is the initial backoff duration for reconnection.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// MaxReconnectAttempts caps reconnection tries (0 = unlimited).
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// MaxMediaSizeMB is the largest voice note to download.
	MaxMediaSizeMB int `yaml:"max_media_size_mb"`
}

// APIConfig configures the LLM provider endpoint.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible endpoint base (default api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey is the fallback API key; keyring and environment take priority.
	APIKey string `yaml:"api_key"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	// Address is the listen address (default ":8090").
	Address string `yaml:"address"`

	// AuthToken, when set, is required as a bearer token on /api and
	// /webhook routes.
	AuthToken string `yaml:"auth_token"`

	// CORSOrigins lists allowed origins for the web chat frontend.
	CORSOrigins []string `yaml:"cors_origins"`
}

// DefaultConfig returns a Config with working defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:         "FieldMate",
		Model:        "gpt-4o-mini",
		HistoryLimit: 30,
		Store:        store.Config{Path: "./data/fieldmate.db"},
		Gateway:      GatewayConfig{Address: ":8090"},
		WhatsApp: WhatsAppConfig{
			SessionPath:          "./data/whatsapp.db",
			DeviceName:           "FieldMate",
			ReconnectBackoff:     5 * time.Second,
			MaxReconnectAttempts: 10,
			MaxMediaSizeMB:       16,
		},
		Scheduler: scheduler.DefaultConfig(),
	}
}

// LoadConfig reads configuration from a YAML file, after loading .env so
// environment references resolve. A missing file returns the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = "fieldmate.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 30
	}
	return cfg, nil
}
