package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

func TestResolveTaskExactTitleOnly(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	r := NewResolver(s)
	ctx := context.Background()

	task := &store.Task{AccountID: account.ID, Title: "Quote the Smith job", DueDate: time.Now().Add(24 * time.Hour)}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := r.ResolveTask(ctx, account.ID, "quote the smith job")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != task.ID {
		t.Errorf("exact title should resolve, got %+v", got)
	}

	got, err = r.ResolveTask(ctx, account.ID, "Smith")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Errorf("partial task title should not resolve, got %+v", got)
	}
}

func TestResolveEventPartialTitle(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	r := NewResolver(s)
	ctx := context.Background()

	event := &store.Event{AccountID: account.ID, Title: "Site visit at the Hendersons", StartTime: time.Now().Add(48 * time.Hour)}
	if err := s.CreateEvent(ctx, event); err != nil {
		t.Fatalf("create event: %v", err)
	}

	got, err := r.ResolveEvent(ctx, account.ID, "hendersons")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != event.ID {
		t.Errorf("partial event title should resolve, got %+v", got)
	}
}

func TestResolveByID(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	r := NewResolver(s)
	ctx := context.Background()

	task := &store.Task{AccountID: account.ID, Title: "By id", DueDate: time.Now().Add(24 * time.Hour)}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := r.ResolveTask(ctx, account.ID, task.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != task.ID {
		t.Errorf("id reference should resolve, got %+v", got)
	}
}

func TestResolveInvoiceHeuristicOrder(t *testing.T) {
	s := testStore(t)
	account := testAccount(t, s)
	r := NewResolver(s)
	ctx := context.Background()

	byAmount := &store.Invoice{AccountID: account.ID, ClientName: "Acme", Amount: 250, DueDate: time.Now().Add(7 * 24 * time.Hour)}
	if err := s.CreateInvoice(ctx, byAmount); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	byClient := &store.Invoice{AccountID: account.ID, ClientName: "Henderson Build", Amount: 990, DueDate: time.Now().Add(7 * 24 * time.Hour)}
	if err := s.CreateInvoice(ctx, byClient); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	got, err := r.ResolveInvoice(ctx, account.ID, "the $250 one")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != byAmount.ID {
		t.Errorf("amount reference should resolve, got %+v", got)
	}

	got, err = r.ResolveInvoice(ctx, account.ID, "henderson")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != byClient.ID {
		t.Errorf("client reference should resolve, got %+v", got)
	}

	got, err = r.ResolveInvoice(ctx, account.ID, "globex")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Errorf("unknown reference should resolve to nil, got %+v", got)
	}
}
