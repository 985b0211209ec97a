// Package store provides SQLite persistence for FieldMate domain records:
// accounts, conversations, messages, tasks, events, and invoices.
// All domain records are owned by exactly one account; every query is scoped
// by account id.
package store

import (
	"encoding/json"
	"time"
)

// Priority levels for tasks.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Task statuses.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusOnHold     = "On Hold"
)

// Invoice statuses.
const (
	InvoicePending = "Pending"
	InvoicePaid    = "Paid"
	InvoiceOverdue = "Overdue"
)

// Message sender roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Account is a registered (or lazily created) user of the assistant.
type Account struct {
	ID           string
	Name         string
	Trade        string // profession category, used to personalize prompts
	Email        string
	Phone        string
	PasswordHash string // bcrypt; empty for channel-created accounts
	CreatedAt    time.Time
}

// Conversation is the single message container for an account.
// Uniqueness (one per account) is enforced by the schema.
type Conversation struct {
	ID        string
	AccountID string
	CreatedAt time.Time
}

// Message is one conversation turn half. Immutable once created.
type Message struct {
	ID             string
	ConversationID string
	AccountID      string
	Role           string // "user" or "assistant"
	Text           string
	CreatedAt      time.Time
}

// Task is a to-do item.
type Task struct {
	ID          string
	AccountID   string
	Title       string
	Description string
	Completed   bool
	CompletedAt *time.Time
	DueDate     time.Time
	Priority    string
	Status      string
	Tags        []string
	Project     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Event is a calendar entry.
type Event struct {
	ID          string
	AccountID   string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     *time.Time // when set, strictly after StartTime
	Cancelled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
}

// Invoice is a bill issued to a client.
type Invoice struct {
	ID          string
	AccountID   string
	ClientName  string
	Amount      float64
	Status      string
	IssueDate   time.Time
	DueDate     time.Time
	PaidDate    *time.Time // set iff Status == Paid
	Description string
	LineItems   []LineItem

	// External accounting linkage (best-effort sync).
	XeroInvoiceID string
	XeroStatus    string
	XeroSyncError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// marshalTags serializes a tag set for storage. NULL-safe: nil slices
// round-trip as empty.
func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func marshalLineItems(items []LineItem) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalLineItems(raw string) []LineItem {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
