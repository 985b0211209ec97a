package assistant

import (
	"fmt"
	"strings"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// synthesize turns a dispatch envelope into reply text. The model's own
// confirmation wins when it supplied one; templates cover the rest so the
// user always gets a concrete answer even from a terse model.
func synthesize(intent *Intent, env *Envelope) string {
	if !env.Success {
		msg := env.Error
		if len(env.MissingFields) > 0 {
			msg = "I still need: " + strings.Join(env.MissingFields, ", ")
		}
		return "I couldn't complete that action: " + msg
	}

	var text string
	switch data := env.Data.(type) {
	case *store.Task:
		text = taskReply(intent.Action, data)
	case *store.Event:
		text = eventReply(intent.Action, data)
	case *store.Invoice:
		text = invoiceReply(intent.Action, data)
	case []*store.Task:
		text = taskListReply(data, env.Meta)
	case []*store.Event:
		text = eventListReply(data, env.Meta)
	case []*store.Invoice:
		text = invoiceListReply(data, env.Meta)
	}

	// The model's confirmation wins for mutations and chat; fetch replies
	// always come from the templates, since the model never saw the results.
	if intent.Response != "" && !strings.Contains(intent.Action, "fetch") {
		text = intent.Response
	}
	if text == "" {
		text = "Done."
	}

	if env.SyncStatus == SyncFailed {
		text += " (Heads up: I couldn't sync this with your accounting system, but it's saved here.)"
	}
	if strings.HasPrefix(env.EmailStatus, "failed") {
		text += " (I couldn't send the email: " + strings.TrimPrefix(env.EmailStatus, "failed: ") + ")"
	}
	return text
}

// clarificationReply renders a clarification question, numbering the options
// when the model supplied candidates.
func clarificationReply(c *Clarification) string {
	if len(c.Options) == 0 {
		return c.Question
	}
	var b strings.Builder
	b.WriteString(c.Question)
	for i, opt := range c.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return b.String()
}

func taskReply(action string, t *store.Task) string {
	switch action {
	case ActionCreateTask:
		return fmt.Sprintf("Added task %q, due %s (%s priority).", t.Title, t.DueDate.Format("Monday 2 January"), strings.ToLower(t.Priority))
	case ActionCompleteTask:
		return fmt.Sprintf("Nice work! Marked %q as done.", t.Title)
	case ActionDeleteTask:
		return fmt.Sprintf("Deleted task %q.", t.Title)
	default:
		return fmt.Sprintf("Updated task %q.", t.Title)
	}
}

func eventReply(action string, e *store.Event) string {
	when := e.StartTime.Format("Monday 2 January at 3:04 PM")
	switch action {
	case ActionCreateEvent:
		s := fmt.Sprintf("Scheduled %q for %s", e.Title, when)
		if e.Location != "" {
			s += " at " + e.Location
		}
		return s + "."
	case ActionCancelEvent:
		return fmt.Sprintf("Cancelled %q (%s).", e.Title, when)
	case ActionDeleteEvent:
		return fmt.Sprintf("Deleted event %q.", e.Title)
	default:
		return fmt.Sprintf("Updated %q, now %s.", e.Title, when)
	}
}

func invoiceReply(action string, inv *store.Invoice) string {
	switch action {
	case ActionCreateInvoice:
		return fmt.Sprintf("Created a $%.2f invoice for %s, due %s.", inv.Amount, inv.ClientName, inv.DueDate.Format("2 January"))
	case ActionMarkInvoicePaid:
		return fmt.Sprintf("Marked the $%.2f invoice for %s as paid.", inv.Amount, inv.ClientName)
	case ActionSendInvoice:
		return fmt.Sprintf("Sent the $%.2f invoice for %s.", inv.Amount, inv.ClientName)
	case ActionDeleteInvoice:
		return fmt.Sprintf("Deleted the $%.2f invoice for %s.", inv.Amount, inv.ClientName)
	default:
		return fmt.Sprintf("Updated the invoice for %s ($%.2f).", inv.ClientName, inv.Amount)
	}
}

func taskListReply(tasks []*store.Task, meta *FetchMeta) string {
	if len(tasks) == 0 {
		return "No tasks match."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d task(s):", meta.Total)
	for _, t := range tasks {
		status := t.Status
		if t.Completed {
			status = "done"
		}
		fmt.Fprintf(&b, "\n- %s (%s, due %s)", t.Title, status, t.DueDate.Format("2 Jan"))
	}
	appendTruncation(&b, meta)
	return b.String()
}

func eventListReply(events []*store.Event, meta *FetchMeta) string {
	if len(events) == 0 {
		return "Nothing on the calendar for that."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d event(s):", meta.Total)
	for _, e := range events {
		fmt.Fprintf(&b, "\n- %s, %s", e.Title, e.StartTime.Format("Mon 2 Jan 3:04 PM"))
		if e.Cancelled {
			b.WriteString(" (cancelled)")
		}
	}
	appendTruncation(&b, meta)
	return b.String()
}

func invoiceListReply(invoices []*store.Invoice, meta *FetchMeta) string {
	if len(invoices) == 0 {
		return "No invoices match."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d invoice(s):", meta.Total)
	for _, inv := range invoices {
		fmt.Fprintf(&b, "\n- %s: $%.2f, %s, due %s", inv.ClientName, inv.Amount, strings.ToLower(inv.Status), inv.DueDate.Format("2 Jan"))
	}
	appendTruncation(&b, meta)
	return b.String()
}

func appendTruncation(b *strings.Builder, meta *FetchMeta) {
	if meta.Total > meta.Returned {
		fmt.Fprintf(b, "\n(showing %d of %d)", meta.Returned, meta.Total)
	}
}
