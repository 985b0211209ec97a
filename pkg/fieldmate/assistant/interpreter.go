package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// systemPrompt produces the instruction block for one turn. The account's
// trade and name personalize the persona, and the snapshot grounds record
// references so the model can emit real IDs.
func systemPrompt(account *store.Account, snapshot string) string {
	trade := account.Trade
	if trade == "" {
		trade = "tradesperson"
	}
	name := account.Name
	if name == "" {
		name = "the business owner"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are FieldMate, the business assistant for %s, a %s.
You turn messages into exactly one JSON object and nothing else. No prose
before or after the JSON, no markdown fences.

The JSON object has this shape:
  {"action": "<action>", "params": {...}, "response": "<short confirmation in plain language>"}

Allowed actions:
  create_task, update_task, complete_task, delete_task, fetch_tasks,
  create_event, update_event, cancel_event, delete_event, fetch_events,
  create_invoice, update_invoice, mark_invoice_paid, send_invoice,
  delete_invoice, fetch_invoices, general_chat

Use general_chat for greetings, questions, and anything that is not a
command. Put your conversational reply in "response".

Param names: title, taskId, eventId, invoiceId, description, dueDate,
startTime, endTime, location, priority (Low/Medium/High), status,
completed, cancelled, clientName, amount, issueDate, email, sendEmail,
lineItems (description/quantity/unitAmount), search, dateFrom, dateTo,
sortBy, sortOrder, limit, skip, allowPastDue.

Dates may be natural language ("tomorrow", "next week", "in 3 days");
pass them through as the user said them.

When the user refers to a record by name rather than ID, pass the name in
title (tasks, events) or clientName (invoices) and leave the ID empty.

If a command is ambiguous and you need the user to choose, reply with:
  {"needsClarification": {"field": "<param>", "question": "<question>", "options": ["...", "..."]}}

`, name, trade)

	b.WriteString("Current records:\n")
	b.WriteString(snapshot)
	return b.String()
}

// interpret runs one utterance through the model and parses the reply into
// a typed intent or a clarification request.
func (a *Assistant) interpret(ctx context.Context, account *store.Account, history []*store.Message, text string) (*Intent, *Clarification, error) {
	snapshot, err := a.buildSnapshot(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt(account, snapshot)})
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Text})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: text})

	reply, err := a.llm.Chat(ctx, messages)
	if err != nil {
		return nil, nil, fmt.Errorf("model call: %w", err)
	}
	return parseIntent(reply)
}

var reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// prepareIntent fills gaps the model commonly leaves before the intent is
// dispatched. It may return a clarification when a required value cannot be
// recovered from context.
func (a *Assistant) prepareIntent(ctx context.Context, account *store.Account, history []*store.Message, intent *Intent) (*Clarification, error) {
	spec, ok := actionTable[intent.Action]
	if !ok {
		return nil, errUpstreamParse(fmt.Errorf("unknown action %q", intent.Action))
	}

	// Mutating actions need something to act on. Fetches and creates do not
	// address an existing record, so they are exempt. The create_ exemption
	// leans on the action table: every create_ entry lists its identifying
	// fields as Required, so the dispatcher's missing-field gate still
	// catches an empty create. A new action name must keep that pairing.
	if !strings.Contains(intent.Action, "fetch") && !strings.HasPrefix(intent.Action, "create_") {
		switch spec.Domain {
		case DomainTask:
			if intent.Params.TaskID == "" && intent.Params.Title == "" {
				return &Clarification{Field: "taskId", Question: "Which task do you mean?"}, nil
			}
		case DomainEvent:
			if intent.Params.EventID == "" && intent.Params.Title == "" {
				return &Clarification{Field: "eventId", Question: "Which event do you mean?"}, nil
			}
		case DomainInvoice:
			if intent.Params.InvoiceID == "" && intent.Params.ClientName == "" {
				// "Send the invoice" with no reference means the most recent
				// one. Other invoice actions ask instead of guessing.
				if intent.Action != ActionSendInvoice {
					return &Clarification{Field: "invoiceId", Question: "Which invoice do you mean?"}, nil
				}
				latest, err := a.store.LatestInvoice(ctx, account.ID)
				if err != nil {
					return nil, err
				}
				if latest == nil {
					return nil, errNotFound("invoice")
				}
				intent.Params.InvoiceID = latest.ID
			}
		}
	}

	if intent.Action == ActionSendInvoice && intent.Params.Email == "" {
		intent.Params.Email = recoverEmail(account, history)
		if intent.Params.Email == "" {
			return &Clarification{
				Field:    "email",
				Question: "What email address should I send the invoice to?",
			}, nil
		}
	}

	return nil, nil
}

// recoverEmail finds a recipient address from the account profile or, failing
// that, the most recent message that mentions one.
func recoverEmail(account *store.Account, history []*store.Message) string {
	if account.Email != "" {
		return account.Email
	}
	for i := len(history) - 1; i >= 0; i-- {
		if addr := reEmail.FindString(history[i].Text); addr != "" {
			return addr
		}
	}
	return ""
}
