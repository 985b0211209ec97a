package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendDeliversJSON(t *testing.T) {
	var got sendRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(Config{BaseURL: srv.URL, APIKey: "key-1", From: "invoices@fieldmate.app"}, nil)
	err := m.Send(context.Background(), &Email{
		To:      "jane@henderson.build",
		Subject: "Invoice for Henderson Build ($250.00)",
		Text:    "Please find your invoice attached.",
		Attachments: []Attachment{
			{Filename: "invoice.html", MIMEType: "text/html", Content: []byte("<html></html>")},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if got.From != "invoices@fieldmate.app" {
		t.Errorf("from = %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "jane@henderson.build" {
		t.Errorf("to = %v", got.To)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "invoice.html" {
		t.Errorf("attachments = %v", got.Attachments)
	}
	if got.Attachments[0].Content == "" {
		t.Error("attachment content should be base64 encoded, got empty")
	}
}

func TestSendRejectsUnconfigured(t *testing.T) {
	m := New(Config{}, nil)
	if m.Configured() {
		t.Error("mailer without key and from should not report configured")
	}
	err := m.Send(context.Background(), &Email{To: "x@example.com", Subject: "hi"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected not-configured error, got %v", err)
	}
}

func TestSendRejectsMissingRecipient(t *testing.T) {
	m := New(Config{APIKey: "k", From: "f@example.com"}, nil)
	err := m.Send(context.Background(), &Email{Subject: "hi"})
	if err == nil || !strings.Contains(err.Error(), "missing recipient") {
		t.Errorf("expected missing-recipient error, got %v", err)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"domain not verified"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	m := New(Config{BaseURL: srv.URL, APIKey: "k", From: "f@example.com"}, nil)
	err := m.Send(context.Background(), &Email{To: "x@example.com", Subject: "hi"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
		t.Errorf("expected HTTP 403 error, got %v", err)
	}
}
