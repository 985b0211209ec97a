package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

const version = "1.0.0"

type errorResponse struct {
	Error string `json:"error"`
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response", "error", err)
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, status int) {
	g.writeJSON(w, status, errorResponse{Error: msg})
}

// ---------- Health ----------

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(g.startedAt).Round(time.Second).String(),
		"store":   g.assistant.Store().Status(),
	})
}

// ---------- Chat ----------

type chatRequest struct {
	AccountID string `json:"account_id"`
	Text      string `json:"text"`
	Voice     bool   `json:"voice"`
}

type sideEffectView struct {
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Content  string `json:"content,omitempty"` // base64
}

type chatResponse struct {
	Reply       string           `json:"reply"`
	SideEffects []sideEffectView `json:"side_effects,omitempty"`
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || strings.TrimSpace(req.Text) == "" {
		g.writeError(w, "account_id and text are required", http.StatusBadRequest)
		return
	}

	reply, err := g.assistant.HandleMessage(r.Context(), &assistant.Request{
		AccountID: req.AccountID,
		Text:      req.Text,
		Voice:     req.Voice,
	})
	if err != nil {
		g.logger.Error("chat turn failed", "account", req.AccountID, "error", err)
		g.writeError(w, "could not process message", http.StatusInternalServerError)
		return
	}

	resp := chatResponse{Reply: reply.Text}
	for _, effect := range reply.SideEffects {
		view := sideEffectView{
			Kind:     effect.Kind,
			Filename: effect.Filename,
			MIME:     effect.MIME,
		}
		if len(effect.Content) > 0 {
			view.Content = base64.StdEncoding.EncodeToString(effect.Content)
		}
		resp.SideEffects = append(resp.SideEffects, view)
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// ---------- Meeting extraction ----------

type extractRequest struct {
	AccountID  string `json:"account_id"`
	Transcript string `json:"transcript"`
}

func (g *Gateway) handleExtractEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || strings.TrimSpace(req.Transcript) == "" {
		g.writeError(w, "account_id and transcript are required", http.StatusBadRequest)
		return
	}

	events, err := g.assistant.ExtractEvents(r.Context(), req.AccountID, req.Transcript)
	if err != nil {
		g.logger.Error("extraction failed", "account", req.AccountID, "error", err)
		g.writeError(w, "could not extract events", http.StatusInternalServerError)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"created": len(events),
		"events":  events,
	})
}

// ---------- Accounts ----------

type signupRequest struct {
	Name     string `json:"name"`
	Trade    string `json:"trade"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		g.writeError(w, "email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	st := g.assistant.Store()
	existing, err := st.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		g.writeError(w, "could not create account", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		g.writeError(w, "an account with that email already exists", http.StatusConflict)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		g.writeError(w, "could not create account", http.StatusInternalServerError)
		return
	}
	account := &store.Account{
		Name:         req.Name,
		Trade:        req.Trade,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	}
	if err := st.CreateAccount(r.Context(), account); err != nil {
		g.logger.Error("signup failed", "email", req.Email, "error", err)
		g.writeError(w, "could not create account", http.StatusInternalServerError)
		return
	}
	g.writeJSON(w, http.StatusCreated, map[string]string{"account_id": account.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	account, err := g.assistant.Store().GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		g.writeError(w, "could not log in", http.StatusInternalServerError)
		return
	}
	if account == nil || account.PasswordHash == "" {
		g.writeError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		g.writeError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"account_id": account.ID})
}

// ---------- Webhook ----------

// webhookMessage is the inbound shape hosted messaging providers POST when a
// user messages the business number.
type webhookMessage struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Text     string `json:"text"`
}

// handleWebhookMessage handles provider callbacks. The sender is matched to
// an account by phone, creating one on first contact, mirroring the native
// channel behavior.
func (g *Gateway) handleWebhookMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg webhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if msg.From == "" || strings.TrimSpace(msg.Text) == "" {
		g.writeError(w, "from and text are required", http.StatusBadRequest)
		return
	}

	st := g.assistant.Store()
	account, err := st.GetAccountByPhone(r.Context(), msg.From)
	if err != nil {
		g.writeError(w, "could not process message", http.StatusInternalServerError)
		return
	}
	if account == nil {
		account = &store.Account{Name: msg.FromName, Phone: msg.From}
		if err := st.CreateAccount(r.Context(), account); err != nil {
			g.writeError(w, "could not process message", http.StatusInternalServerError)
			return
		}
		g.logger.Info("created account on first contact", "phone", msg.From)
	}

	reply, err := g.assistant.HandleMessage(r.Context(), &assistant.Request{
		AccountID: account.ID,
		Text:      msg.Text,
	})
	if err != nil {
		g.logger.Error("webhook turn failed", "account", account.ID, "error", err)
		g.writeError(w, "could not process message", http.StatusInternalServerError)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"reply": reply.Text})
}
