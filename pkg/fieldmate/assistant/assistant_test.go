package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// cannedModel returns a fixed reply (or error) for every chat call.
type cannedModel struct {
	reply string
	err   error
	calls int
}

func (m *cannedModel) Chat(_ context.Context, _ []ChatMessage) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func orchestrator(t *testing.T, s *store.Store, model chatModel) *Assistant {
	t.Helper()
	return &Assistant{
		store:      s,
		llm:        model,
		dispatcher: NewDispatcher(s, nil, nil, nil, slog.Default()),
		config:     DefaultConfig(),
		logger:     slog.Default(),
		locks:      map[string]*sync.Mutex{},
	}
}

func turnMessages(t *testing.T, s *store.Store, accountID string) []*store.Message {
	t.Helper()
	conv, err := s.GetOrCreateConversation(context.Background(), accountID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	msgs, err := s.ListMessages(context.Background(), conv.ID, 50)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}

func TestHandleMessageFullTurn(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := orchestrator(t, s, &cannedModel{
		reply: `{"action":"create_task","params":{"title":"Order copper pipe"},"response":"Task added."}`,
	})

	reply, err := a.HandleMessage(context.Background(), &Request{
		AccountID: account.ID,
		Text:      "add a task to order copper pipe",
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Text != "Task added." {
		t.Errorf("reply = %q, want model response", reply.Text)
	}

	tasks, total, err := s.ListTasks(context.Background(), account.ID, store.TaskQuery{})
	if err != nil || total != 1 {
		t.Fatalf("tasks after turn = %d (err %v), want 1", total, err)
	}
	if tasks[0].Title != "Order copper pipe" {
		t.Errorf("task title = %q", tasks[0].Title)
	}

	msgs := turnMessages(t, s, account.ID)
	if len(msgs) != 2 || msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAssistant {
		t.Errorf("persisted turn = %d messages, want user+assistant pair", len(msgs))
	}
}

func TestHandleMessageClarificationSkipsDispatch(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := orchestrator(t, s, &cannedModel{
		reply: `{"needsClarification":{"field":"email","question":"What email should I use?"}}`,
	})

	reply, err := a.HandleMessage(context.Background(), &Request{
		AccountID: account.ID,
		Text:      "send the invoice",
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(reply.Text, "What email should I use?") {
		t.Errorf("reply = %q, want the clarification question verbatim", reply.Text)
	}

	// Nothing was dispatched: no records came into existence.
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM invoices`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("invoices after clarification turn = %d, want 0", n)
	}

	// The turn is still part of the history.
	if msgs := turnMessages(t, s, account.ID); len(msgs) != 2 {
		t.Errorf("persisted %d messages, want 2", len(msgs))
	}
}

func TestHandleMessageUnparseableReplyIsSafe(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := orchestrator(t, s, &cannedModel{reply: "sure thing, I'll get right on that!"})

	reply, err := a.HandleMessage(context.Background(), &Request{
		AccountID: account.ID,
		Text:      "add a task",
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.HasPrefix(reply.Text, "Sorry, I couldn't work out what to do with that") {
		t.Errorf("reply = %q, want apology", reply.Text)
	}

	msgs := turnMessages(t, s, account.ID)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2 even on parse failure", len(msgs))
	}
	if msgs[1].Role != store.RoleAssistant || msgs[1].Text != reply.Text {
		t.Errorf("assistant message = %+v, want the safe reply", msgs[1])
	}
}

func TestHandleMessageModelErrorIsSafe(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := orchestrator(t, s, &cannedModel{err: errors.New("connection refused")})

	reply, err := a.HandleMessage(context.Background(), &Request{
		AccountID: account.ID,
		Text:      "what's due today?",
	})
	if err != nil {
		t.Fatalf("HandleMessage should not surface model errors, got %v", err)
	}
	if !strings.Contains(reply.Text, "Could you rephrase?") {
		t.Errorf("reply = %q, want safe apology", reply.Text)
	}
	if msgs := turnMessages(t, s, account.ID); len(msgs) != 2 {
		t.Errorf("persisted %d messages, want 2", len(msgs))
	}
}

func TestHandleMessageVoiceAddsSpeakEffect(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	a := orchestrator(t, s, &cannedModel{
		reply: `{"action":"general_chat","response":"Morning!"}`,
	})

	reply, err := a.HandleMessage(context.Background(), &Request{
		AccountID: account.ID,
		Text:      "morning",
		Voice:     true,
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(reply.SideEffects) != 1 || reply.SideEffects[0].Kind != EffectSpeakReply {
		t.Errorf("side effects = %+v, want a single speak_reply", reply.SideEffects)
	}
}
