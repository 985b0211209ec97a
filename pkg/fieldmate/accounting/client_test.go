package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testSession() *Session {
	return &Session{TenantID: "tenant-1", AccessToken: "token-1"}
}

func TestSessionActive(t *testing.T) {
	t.Run("nil session is inactive", func(t *testing.T) {
		var s *Session
		if s.Active() {
			t.Error("nil session should not be active")
		}
	})

	t.Run("missing tenant is inactive", func(t *testing.T) {
		s := &Session{AccessToken: "token"}
		if s.Active() {
			t.Error("session without tenant should not be active")
		}
	})

	t.Run("full session is active", func(t *testing.T) {
		if !testSession().Active() {
			t.Error("complete session should be active")
		}
	})
}

func TestSessionFromConfig(t *testing.T) {
	if s := SessionFromConfig(Config{}); s != nil {
		t.Error("empty config should yield nil session")
	}
	s := SessionFromConfig(Config{TenantID: "t", AccessToken: "k"})
	if s == nil || s.TenantID != "t" {
		t.Errorf("expected session for configured tenant, got %+v", s)
	}
}

func TestCreateInvoiceSendsHeaders(t *testing.T) {
	var gotAuth, gotTenant, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("Xero-Tenant-Id")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(InvoiceResult{InvoiceID: "inv-ext-1", Status: "AUTHORISED", Total: 250})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, nil)
	result, err := c.CreateInvoice(context.Background(), testSession(), InvoiceParams{
		ClientName: "Henderson Build",
		Amount:     250,
		DueDate:    time.Now().Add(7 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if result.InvoiceID != "inv-ext-1" {
		t.Errorf("invoice id = %q, want inv-ext-1", result.InvoiceID)
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotTenant != "tenant-1" {
		t.Errorf("Xero-Tenant-Id = %q", gotTenant)
	}
	if gotPath != "/invoices" {
		t.Errorf("path = %q, want /invoices", gotPath)
	}
}

func TestMarkInvoiceAsPaidPayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" {
			t.Errorf("path = %q, want /payments", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(InvoiceResult{InvoiceID: "inv-ext-1", Status: "PAID"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, nil)
	paidAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	if _, err := c.MarkInvoiceAsPaid(context.Background(), testSession(), "inv-ext-1", paidAt, 250); err != nil {
		t.Fatalf("MarkInvoiceAsPaid: %v", err)
	}
	if payload["date"] != "2026-03-15" {
		t.Errorf("payment date = %v, want 2026-03-15", payload["date"])
	}
	if payload["amount"] != float64(250) {
		t.Errorf("payment amount = %v, want 250", payload["amount"])
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, ErrAuthExpired},
		{http.StatusForbidden, ErrPermissionDenied},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnprocessableEntity, ErrBadRequest},
		{http.StatusInternalServerError, ErrNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(Config{BaseURL: srv.URL}, nil)
			_, err := c.UpdateInvoice(context.Background(), testSession(), "inv-1", InvoiceParams{})
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if apiErr.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", apiErr.Kind, tc.kind)
			}
			if KindOf(err) != tc.kind {
				t.Errorf("KindOf = %s, want %s", KindOf(err), tc.kind)
			}
		})
	}
}

func TestInactiveSessionRejected(t *testing.T) {
	c := NewHTTPClient(Config{BaseURL: "http://localhost:1"}, nil)
	_, err := c.CreateInvoice(context.Background(), nil, InvoiceParams{})
	if err == nil {
		t.Fatal("expected error for nil session")
	}
	if KindOf(err) != ErrAuthExpired {
		t.Errorf("kind = %s, want auth_expired", KindOf(err))
	}
}
