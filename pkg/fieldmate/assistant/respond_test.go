package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

func TestSynthesizeFailureFormat(t *testing.T) {
	got := synthesize(&Intent{Action: ActionCreateTask}, fail("Due date cannot be in the past"))
	want := "I couldn't complete that action: Due date cannot be in the past"
	if got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestSynthesizeMissingFields(t *testing.T) {
	got := synthesize(&Intent{Action: ActionCreateInvoice}, failMissing([]string{"amount", "dueDate"}))
	if !strings.Contains(got, "amount") || !strings.Contains(got, "dueDate") {
		t.Errorf("reply %q does not name the missing fields", got)
	}
}

func TestSynthesizeModelResponseWins(t *testing.T) {
	task := &store.Task{Title: "Fix the boiler", DueDate: time.Now(), Priority: store.PriorityMedium}
	intent := &Intent{Action: ActionCreateTask, Response: "Sorted, boiler's on the list."}

	got := synthesize(intent, &Envelope{Success: true, Data: task})
	if got != "Sorted, boiler's on the list." {
		t.Errorf("reply = %q, want the model's confirmation", got)
	}
}

func TestSynthesizeFetchIgnoresModelResponse(t *testing.T) {
	tasks := []*store.Task{{Title: "One", DueDate: time.Now(), Status: store.StatusNotStarted}}
	intent := &Intent{Action: ActionFetchTasks, Response: "Here are your tasks!"}

	got := synthesize(intent, &Envelope{
		Success: true,
		Data:    tasks,
		Meta:    &FetchMeta{Total: 1, Returned: 1, Limit: 20},
	})
	if !strings.Contains(got, "One") {
		t.Errorf("reply %q does not list the results", got)
	}
}

func TestSynthesizeSyncWarning(t *testing.T) {
	inv := &store.Invoice{ClientName: "Acme", Amount: 250, DueDate: time.Now(), Status: store.InvoicePending}
	got := synthesize(&Intent{Action: ActionCreateInvoice}, &Envelope{
		Success:    true,
		Data:       inv,
		SyncStatus: SyncFailed,
	})
	if !strings.Contains(got, "accounting") {
		t.Errorf("reply %q does not warn about the sync failure", got)
	}
	if !strings.Contains(got, "Acme") {
		t.Errorf("reply %q does not confirm the invoice", got)
	}
}

func TestSynthesizeTruncatedList(t *testing.T) {
	tasks := []*store.Task{
		{Title: "One", DueDate: time.Now(), Status: store.StatusNotStarted},
		{Title: "Two", DueDate: time.Now(), Status: store.StatusNotStarted},
	}
	got := synthesize(&Intent{Action: ActionFetchTasks}, &Envelope{
		Success: true,
		Data:    tasks,
		Meta:    &FetchMeta{Total: 9, Returned: 2, Limit: 2},
	})
	if !strings.Contains(got, "showing 2 of 9") {
		t.Errorf("reply %q does not note truncation", got)
	}
}

func TestClarificationReplyOptions(t *testing.T) {
	c := &Clarification{
		Question: "Which task do you mean?",
		Options:  []string{"Fix the boiler", "Quote the Smith job"},
	}
	got := clarificationReply(c)
	if !strings.Contains(got, "1. Fix the boiler") || !strings.Contains(got, "2. Quote the Smith job") {
		t.Errorf("reply = %q", got)
	}

	bare := clarificationReply(&Clarification{Question: "Which one?"})
	if bare != "Which one?" {
		t.Errorf("reply = %q", bare)
	}
}
