package whatsapp

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/channels"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("creates instance with defaults", func(t *testing.T) {
		w := New(DefaultConfig(), logger)
		if w == nil {
			t.Fatal("expected non-nil WhatsApp instance")
		}
		if w.Name() != "whatsapp" {
			t.Errorf("expected name 'whatsapp', got %s", w.Name())
		}
		if w.IsConnected() {
			t.Error("expected disconnected on creation")
		}
	})

	t.Run("uses default logger if nil", func(t *testing.T) {
		w := New(DefaultConfig(), nil)
		if w.logger == nil {
			t.Error("expected logger to be set")
		}
	})

	t.Run("applies reconnect backoff default", func(t *testing.T) {
		w := New(Config{SessionPath: "./data/whatsapp.db"}, logger)
		if w.cfg.ReconnectBackoff != 5*time.Second {
			t.Errorf("expected default backoff 5s, got %v", w.cfg.ReconnectBackoff)
		}
	})
}

func TestParseJID(t *testing.T) {
	t.Run("bare phone number", func(t *testing.T) {
		jid, err := parseJID("5511999999999")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jid.User != "5511999999999" {
			t.Errorf("user = %q", jid.User)
		}
	})

	t.Run("formatted phone number", func(t *testing.T) {
		jid, err := parseJID("+55 (11) 99999-9999")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jid.User != "5511999999999" {
			t.Errorf("user = %q", jid.User)
		}
	})

	t.Run("full JID passes through", func(t *testing.T) {
		jid, err := parseJID("5511999999999@s.whatsapp.net")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jid.Server != "s.whatsapp.net" {
			t.Errorf("server = %q", jid.Server)
		}
	})

	t.Run("rejects empty and short input", func(t *testing.T) {
		if _, err := parseJID(""); err == nil {
			t.Error("expected error for empty JID")
		}
		if _, err := parseJID("123"); err == nil {
			t.Error("expected error for short number")
		}
	})
}

func TestSendWhileDisconnected(t *testing.T) {
	w := New(DefaultConfig(), nil)
	err := w.Send(context.Background(), "5511999999999", &channels.OutgoingMessage{Content: "hi"})
	if err != channels.ErrChannelDisconnected {
		t.Errorf("err = %v, want ErrChannelDisconnected", err)
	}
}

func TestEmitMessageAfterClose(t *testing.T) {
	w := New(DefaultConfig(), nil)
	w.ctx, w.cancel = context.WithCancel(context.Background())
	if err := w.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	// Must not panic on a closed channel.
	w.emitMessage(&channels.IncomingMessage{From: "5511999999999"})
}
