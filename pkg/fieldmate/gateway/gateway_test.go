package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := assistant.DefaultConfig()
	a := assistant.New(cfg, st,
		accounting.NewHTTPClient(accounting.Config{BaseURL: "http://localhost:1"}, logger),
		mailer.New(mailer.Config{}, logger),
		logger)
	return New(a, assistant.GatewayConfig{Address: ":0"}, logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSignupAndLogin(t *testing.T) {
	g := testGateway(t)

	rec := postJSON(t, g.handleSignup, "/api/signup",
		`{"name":"Bob","trade":"plumber","email":"bob@example.com","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body)
	}
	var created map[string]string
	json.NewDecoder(rec.Body).Decode(&created)
	if created["account_id"] == "" {
		t.Fatal("signup returned no account_id")
	}

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := postJSON(t, g.handleSignup, "/api/signup",
			`{"email":"bob@example.com","password":"hunter2hunter2"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("login succeeds with correct password", func(t *testing.T) {
		rec := postJSON(t, g.handleLogin, "/api/login",
			`{"email":"bob@example.com","password":"hunter2hunter2"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var resp map[string]string
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp["account_id"] != created["account_id"] {
			t.Errorf("login account = %q, want %q", resp["account_id"], created["account_id"])
		}
	})

	t.Run("login rejects wrong password", func(t *testing.T) {
		rec := postJSON(t, g.handleLogin, "/api/login",
			`{"email":"bob@example.com","password":"wrong-password"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("login response is uniform for unknown email", func(t *testing.T) {
		rec := postJSON(t, g.handleLogin, "/api/login",
			`{"email":"nobody@example.com","password":"whatever1"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid email or password") {
			t.Errorf("body = %s, should not reveal which field is wrong", rec.Body)
		}
	})
}

func TestSignupRejectsShortPassword(t *testing.T) {
	g := testGateway(t)
	rec := postJSON(t, g.handleSignup, "/api/signup", `{"email":"a@b.c","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	g := testGateway(t)
	g.config.AuthToken = "secret-token"
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := g.authMiddleware(ok)

	get := func(path, auth string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := get("/api/chat", ""); code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", code)
	}
	if code := get("/api/chat", "Basic abc"); code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: status = %d, want 401", code)
	}
	if code := get("/api/chat", "Bearer wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", code)
	}
	if code := get("/api/chat", "Bearer secret-token"); code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", code)
	}
	if code := get("/health", ""); code != http.StatusOK {
		t.Errorf("health should be exempt, status = %d", code)
	}
	if code := get("/api/signup", ""); code != http.StatusOK {
		t.Errorf("signup should be exempt, status = %d", code)
	}
}

func TestCompareTokens(t *testing.T) {
	if !compareTokens("abc", "abc") {
		t.Error("equal tokens should compare true")
	}
	if compareTokens("abc", "abd") || compareTokens("abc", "abcd") {
		t.Error("different tokens should compare false")
	}
}

func TestHealthHandler(t *testing.T) {
	g := testGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	g.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}

func TestWebhookValidation(t *testing.T) {
	g := testGateway(t)
	rec := postJSON(t, g.handleWebhookMessage, "/webhook/message", `{"from":"","text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
