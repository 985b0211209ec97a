package assistant

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// Resolver maps a loose textual or id reference onto a concrete stored
// record. An internal id always takes precedence; otherwise domain-specific
// heuristics are tried in order, first non-empty match wins, most recently
// created record selected. Nothing matching is nil, not an error.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// reAmount extracts a money amount like "$100" or "100.50" from free text.
var reAmount = regexp.MustCompile(`\$?(\d+(?:\.\d{1,2})?)`)

// isRecordID reports whether ref looks like an internal record id.
func isRecordID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// ResolveTask finds a task by id or exact title (case-insensitive).
func (r *Resolver) ResolveTask(ctx context.Context, accountID, ref string) (*store.Task, error) {
	if ref == "" {
		return nil, nil
	}
	if isRecordID(ref) {
		return r.store.GetTask(ctx, accountID, ref)
	}
	return r.store.FindTaskByTitle(ctx, accountID, ref)
}

// ResolveEvent finds an event by id or partial title (case-insensitive).
// Events use a contains match where tasks use an exact one: task titles are
// addressed as exact commands while events are described loosely.
func (r *Resolver) ResolveEvent(ctx context.Context, accountID, ref string) (*store.Event, error) {
	if ref == "" {
		return nil, nil
	}
	if isRecordID(ref) {
		return r.store.GetEvent(ctx, accountID, ref)
	}
	return r.store.FindEventByTitle(ctx, accountID, ref)
}

// ResolveInvoice finds an invoice by id, then by amount pattern, then by
// date, then by partial client name. The first heuristic with a match wins.
func (r *Resolver) ResolveInvoice(ctx context.Context, accountID, ref string) (*store.Invoice, error) {
	if ref == "" {
		return nil, nil
	}
	if isRecordID(ref) {
		return r.store.GetInvoice(ctx, accountID, ref)
	}

	if m := reAmount.FindStringSubmatch(ref); m != nil {
		if amount, ok := asFloat(m[1]); ok {
			inv, err := r.store.FindInvoiceByAmount(ctx, accountID, amount)
			if err != nil {
				return nil, err
			}
			if inv != nil {
				return inv, nil
			}
		}
	}

	if day, ok := parseLooseDate(ref, time.Now()); ok {
		inv, err := r.store.FindInvoiceByDate(ctx, accountID, day)
		if err != nil {
			return nil, err
		}
		if inv != nil {
			return inv, nil
		}
	}

	return r.store.FindInvoiceByClient(ctx, accountID, ref)
}
