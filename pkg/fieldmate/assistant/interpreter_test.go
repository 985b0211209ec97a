package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

func testAssistant(t *testing.T, s *store.Store) *Assistant {
	t.Helper()
	return &Assistant{
		store:  s,
		config: DefaultConfig(),
		logger: slog.Default(),
		locks:  map[string]*sync.Mutex{},
	}
}

func TestPrepareIntentAsksForMissingReference(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := testAssistant(t, s)

	intent := &Intent{Action: ActionCompleteTask}
	clarification, err := a.prepareIntent(context.Background(), account, nil, intent)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if clarification == nil || clarification.Field != "taskId" {
		t.Errorf("clarification = %+v, want taskId question", clarification)
	}
}

func TestPrepareIntentSendInvoiceDefaultsToLatest(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := testAssistant(t, s)
	ctx := context.Background()

	older := &store.Invoice{AccountID: account.ID, ClientName: "Acme", Amount: 100, DueDate: time.Now().Add(7 * 24 * time.Hour), IssueDate: time.Now().Add(-48 * time.Hour)}
	if err := s.CreateInvoice(ctx, older); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	latest := &store.Invoice{AccountID: account.ID, ClientName: "Henderson Build", Amount: 990, DueDate: time.Now().Add(7 * 24 * time.Hour)}
	if err := s.CreateInvoice(ctx, latest); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	intent := &Intent{Action: ActionSendInvoice, Params: Params{Email: "client@acme.test"}}
	clarification, err := a.prepareIntent(ctx, account, nil, intent)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if clarification != nil {
		t.Fatalf("unexpected clarification: %+v", clarification)
	}
	if intent.Params.InvoiceID != latest.ID {
		t.Errorf("invoiceId = %q, want latest %q", intent.Params.InvoiceID, latest.ID)
	}
}

func TestPrepareIntentRecoversEmailFromAccount(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := testAssistant(t, s)
	ctx := context.Background()

	inv := &store.Invoice{AccountID: account.ID, ClientName: "Acme", Amount: 100, DueDate: time.Now().Add(7 * 24 * time.Hour)}
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	intent := &Intent{Action: ActionSendInvoice, Params: Params{InvoiceID: inv.ID}}
	clarification, err := a.prepareIntent(ctx, account, nil, intent)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if clarification != nil {
		t.Fatalf("unexpected clarification: %+v", clarification)
	}
	if intent.Params.Email != "bob@example.com" {
		t.Errorf("email = %q, want account fallback", intent.Params.Email)
	}
}

func TestRecoverEmailFromHistory(t *testing.T) {
	account := &store.Account{ID: "a1", Name: "Bob"}
	history := []*store.Message{
		{Role: store.RoleUser, Text: "invoice the kitchen job"},
		{Role: store.RoleUser, Text: "send it to jane@henderson.build please"},
	}
	if got := recoverEmail(account, history); got != "jane@henderson.build" {
		t.Errorf("recoverEmail = %q", got)
	}

	if got := recoverEmail(account, history[:1]); got != "" {
		t.Errorf("recoverEmail = %q, want empty", got)
	}
}

func TestSystemPromptPersonalization(t *testing.T) {
	account := &store.Account{Name: "Bob", Trade: "plumber"}
	prompt := systemPrompt(account, "Open tasks (0 total):\n  none\n")
	if !strings.Contains(prompt, "Bob") || !strings.Contains(prompt, "plumber") {
		t.Error("prompt is not personalized with name and trade")
	}
	if !strings.Contains(prompt, "general_chat") {
		t.Error("prompt does not enumerate actions")
	}
}
