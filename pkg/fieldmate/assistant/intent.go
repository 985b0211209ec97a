package assistant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// Action names form a closed set; anything outside it is rejected at the
// parse boundary as an upstream parse error.
const (
	ActionCreateTask   = "create_task"
	ActionUpdateTask   = "update_task"
	ActionCompleteTask = "complete_task"
	ActionDeleteTask   = "delete_task"
	ActionFetchTasks   = "fetch_tasks"

	ActionCreateEvent = "create_event"
	ActionUpdateEvent = "update_event"
	ActionCancelEvent = "cancel_event"
	ActionDeleteEvent = "delete_event"
	ActionFetchEvents = "fetch_events"

	ActionCreateInvoice   = "create_invoice"
	ActionUpdateInvoice   = "update_invoice"
	ActionMarkInvoicePaid = "mark_invoice_paid"
	ActionSendInvoice     = "send_invoice"
	ActionDeleteInvoice   = "delete_invoice"
	ActionFetchInvoices   = "fetch_invoices"

	ActionGeneralChat = "general_chat"
)

// Entity domains.
const (
	DomainTask    = "task"
	DomainEvent   = "event"
	DomainInvoice = "invoice"
	DomainNone    = ""
)

// Params carries every recognized action parameter, already coerced to its
// Go type. Date/time fields stay raw strings; the dispatcher owns date
// coercion so defaulting policy lives in one place.
type Params struct {
	TaskID    string
	EventID   string
	InvoiceID string

	Title       string
	Description string
	Location    string
	Project     string
	Priority    string
	Status      string
	Tags        []string

	DueDate   string
	StartTime string
	EndTime   string
	IssueDate string
	DateFrom  string
	DateTo    string

	ClientName string
	Amount     *float64
	LineItems  []store.LineItem

	Email        string
	SendEmail    bool
	AllowPastDue bool
	Completed    *bool
	Cancelled    *bool

	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Skip      int
}

// Intent is the typed result of interpreting an utterance: one known action
// plus its coerced parameters and the model's suggested reply text.
type Intent struct {
	Action   string
	Params   Params
	Response string
}

// Clarification asks the user for a missing detail instead of dispatching.
type Clarification struct {
	Field    string   `json:"field"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// rawIntent mirrors the JSON contract with the language model.
type rawIntent struct {
	Action             string         `json:"action"`
	Params             map[string]any `json:"params"`
	Response           string         `json:"response"`
	NeedsClarification *Clarification `json:"needsClarification,omitempty"`
}

// parseIntent parses the model's reply into an Intent or Clarification.
// A fenced ```json block is unwrapped first (models add them despite
// instructions). Unknown actions and unparseable JSON are upstream parse
// errors; there is no retry.
func parseIntent(reply string) (*Intent, *Clarification, error) {
	cleaned := stripCodeFence(reply)

	var raw rawIntent
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, nil, errUpstreamParse(err)
	}
	if raw.NeedsClarification != nil && raw.NeedsClarification.Question != "" {
		return nil, raw.NeedsClarification, nil
	}
	if raw.Action == "" {
		raw.Action = ActionGeneralChat
	}
	if _, ok := actionTable[raw.Action]; !ok {
		return nil, nil, errUpstreamParse(fmt.Errorf("unknown action %q", raw.Action))
	}
	return &Intent{
		Action:   raw.Action,
		Params:   coerceParams(raw.Params),
		Response: raw.Response,
	}, nil, nil
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// coerceParams repairs the model's loosely-typed params object into typed
// fields. Numbers arrive as strings, booleans as "true", amounts with
// currency signs; each is repaired rather than rejected.
func coerceParams(m map[string]any) Params {
	p := Params{
		TaskID:      asString(m["taskId"]),
		EventID:     asString(m["eventId"]),
		InvoiceID:   asString(m["invoiceId"]),
		Title:       asString(m["title"]),
		Description: asString(m["description"]),
		Location:    asString(m["location"]),
		Project:     asString(m["project"]),
		Priority:    asString(m["priority"]),
		Status:      asString(m["status"]),
		DueDate:     asString(m["dueDate"]),
		StartTime:   asString(m["startTime"]),
		EndTime:     asString(m["endTime"]),
		IssueDate:   asString(m["issueDate"]),
		DateFrom:    asString(m["dateFrom"]),
		DateTo:      asString(m["dateTo"]),
		ClientName:  asString(m["clientName"]),
		Email:       asString(m["email"]),
		Search:      asString(m["search"]),
		SortBy:      asString(m["sortBy"]),
		SortOrder:   asString(m["sortOrder"]),
		SendEmail:   asBool(m["sendEmail"]),
		Limit:       asInt(m["limit"]),
		Skip:        asInt(m["skip"]),
	}
	p.AllowPastDue = asBool(m["allowPastDue"]) || asBool(m["allowPastDueDate"])
	if v, ok := m["amount"]; ok {
		if f, ok := asFloat(v); ok {
			p.Amount = &f
		}
	}
	if v, ok := m["completed"]; ok {
		b := asBool(v)
		p.Completed = &b
	}
	if v, ok := m["cancelled"]; ok {
		b := asBool(v)
		p.Cancelled = &b
	}
	p.Tags = asStringSlice(m["tags"])
	if tag := asString(m["tag"]); tag != "" {
		p.Tags = append(p.Tags, tag)
	}
	p.LineItems = asLineItems(m["lineItems"])
	return p
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true") || t == "1" || strings.EqualFold(t, "yes")
	case float64:
		return t != 0
	default:
		return false
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	default:
		return 0
	}
}

// asFloat accepts numbers and strings with optional currency decoration
// ("$1,250.00").
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asLineItems(v any) []store.LineItem {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []store.LineItem
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		li := store.LineItem{Description: asString(m["description"])}
		if f, ok := asFloat(m["quantity"]); ok {
			li.Quantity = f
		}
		if f, ok := asFloat(m["unitAmount"]); ok {
			li.UnitAmount = f
		}
		out = append(out, li)
	}
	return out
}
