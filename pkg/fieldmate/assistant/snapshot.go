package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// snapshotLimit bounds each section of the context snapshot so the prompt
// stays small even for busy accounts.
const snapshotLimit = 10

// buildSnapshot collects the account's open tasks, upcoming events, and
// unpaid invoices into a compact text block for the model's context window.
func (a *Assistant) buildSnapshot(ctx context.Context, accountID string) (string, error) {
	var b strings.Builder
	now := time.Now()

	notCompleted := false
	tasks, taskTotal, err := a.store.ListTasks(ctx, accountID, store.TaskQuery{
		Completed: &notCompleted,
		Limit:     snapshotLimit,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot tasks: %w", err)
	}
	b.WriteString(fmt.Sprintf("Open tasks (%d total):\n", taskTotal))
	if len(tasks) == 0 {
		b.WriteString("  none\n")
	}
	for _, t := range tasks {
		b.WriteString(fmt.Sprintf("  - [%s] %q (%s priority, %s, due %s)\n",
			t.ID, t.Title, t.Priority, t.Status, t.DueDate.Format("2006-01-02")))
	}

	notCancelled := false
	events, eventTotal, err := a.store.ListEvents(ctx, accountID, store.EventQuery{
		Cancelled: &notCancelled,
		From:      &now,
		Limit:     snapshotLimit,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot events: %w", err)
	}
	b.WriteString(fmt.Sprintf("Upcoming events (%d total):\n", eventTotal))
	if len(events) == 0 {
		b.WriteString("  none\n")
	}
	for _, e := range events {
		line := fmt.Sprintf("  - [%s] %q at %s", e.ID, e.Title, e.StartTime.Format("2006-01-02 15:04"))
		if e.Location != "" {
			line += " (" + e.Location + ")"
		}
		b.WriteString(line + "\n")
	}

	invoices, _, err := a.store.ListInvoices(ctx, accountID, store.InvoiceQuery{
		SortBy:   "issue_date",
		SortDesc: true,
		Limit:    snapshotLimit * 2,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot invoices: %w", err)
	}
	var unpaid []*store.Invoice
	for _, inv := range invoices {
		if inv.Status != store.InvoicePaid {
			unpaid = append(unpaid, inv)
		}
		if len(unpaid) == snapshotLimit {
			break
		}
	}
	b.WriteString(fmt.Sprintf("Unpaid invoices (%d shown):\n", len(unpaid)))
	if len(unpaid) == 0 {
		b.WriteString("  none\n")
	}
	for _, inv := range unpaid {
		b.WriteString(fmt.Sprintf("  - [%s] %s: $%.2f (%s, due %s)\n",
			inv.ID, inv.ClientName, inv.Amount, inv.Status, inv.DueDate.Format("2006-01-02")))
	}

	return b.String(), nil
}
