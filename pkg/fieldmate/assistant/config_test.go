package assistant

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "FieldMate" || cfg.Model != "gpt-4o-mini" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.HistoryLimit != 30 {
		t.Errorf("history limit = %d, want 30", cfg.HistoryLimit)
	}
	if cfg.WhatsApp.DeviceName != "FieldMate" || cfg.WhatsApp.MaxMediaSizeMB != 16 {
		t.Errorf("whatsapp defaults not applied: %+v", cfg.WhatsApp)
	}
}

func TestLoadConfigParsesChannelSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmate.yaml")
	yaml := `
name: TestMate
model: gpt-4o
whatsapp:
  enabled: true
  session_path: /tmp/wa.db
  device_name: TestRig
  reconnect_backoff: 2s
  max_media_size_mb: 4
gateway:
  address: ":9999"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.WhatsApp.Enabled || cfg.WhatsApp.SessionPath != "/tmp/wa.db" {
		t.Errorf("whatsapp section not parsed: %+v", cfg.WhatsApp)
	}
	if cfg.WhatsApp.DeviceName != "TestRig" {
		t.Errorf("device name = %q", cfg.WhatsApp.DeviceName)
	}
	if cfg.WhatsApp.ReconnectBackoff != 2*time.Second {
		t.Errorf("backoff = %v, want 2s", cfg.WhatsApp.ReconnectBackoff)
	}
	if cfg.WhatsApp.MaxMediaSizeMB != 4 {
		t.Errorf("media cap = %d, want 4", cfg.WhatsApp.MaxMediaSizeMB)
	}
	if cfg.Gateway.Address != ":9999" {
		t.Errorf("gateway address = %q", cfg.Gateway.Address)
	}
}
