package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEndBeforeStart is returned when an event's end time is not strictly
// after its start time. Enforced on create and update.
var ErrEndBeforeStart = errors.New("event end time must be after start time")

// EventQuery describes a filtered event listing.
type EventQuery struct {
	Cancelled *bool
	From      *time.Time
	To        *time.Time
	Search    string // case-insensitive match on title or description

	SortBy   string // start_time (default), created_at, title
	SortDesc bool
	Skip     int
	Limit    int
}

var eventSortFields = map[string]string{
	"start_time": "start_time",
	"startTime":  "start_time",
	"created_at": "created_at",
	"createdAt":  "created_at",
	"title":      "title",
}

// CreateEvent inserts an event, rejecting end <= start.
func (s *Store) CreateEvent(ctx context.Context, e *Event) error {
	if err := checkEventTimes(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO events (id, account_id, title, description, location, start_time, end_time,
			cancelled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Title, e.Description, e.Location, e.StartTime, nullTime(e.EndTime),
		e.Cancelled, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by id scoped to an account, or nil when not found.
func (s *Store) GetEvent(ctx context.Context, accountID, id string) (*Event, error) {
	row := s.DB.QueryRowContext(ctx, eventSelect+` WHERE id = ? AND account_id = ?`, id, accountID)
	return scanEvent(row)
}

// UpdateEvent rewrites an event's mutable fields, rejecting end <= start.
func (s *Store) UpdateEvent(ctx context.Context, e *Event) error {
	if err := checkEventTimes(e); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()

	res, err := s.DB.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, location = ?, start_time = ?, end_time = ?,
			cancelled = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		e.Title, e.Description, e.Location, e.StartTime, nullTime(e.EndTime),
		e.Cancelled, e.UpdatedAt, e.ID, e.AccountID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteEvent removes an event scoped to an account.
func (s *Store) DeleteEvent(ctx context.Context, accountID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListEvents returns events matching the query plus the total match count.
// Default sort is ascending start time.
func (s *Store) ListEvents(ctx context.Context, accountID string, q EventQuery) ([]*Event, int, error) {
	c := &listClause{}
	c.and("account_id = ?", accountID)
	if q.Cancelled != nil {
		c.and("cancelled = ?", *q.Cancelled)
	}
	if q.From != nil {
		c.and("start_time >= ?", *q.From)
	}
	if q.To != nil {
		c.and("start_time <= ?", *q.To)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		c.and(`(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`, p, p)
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+c.whereSQL(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := eventSelect + c.whereSQL() + orderSQL(q.SortBy, q.SortDesc, eventSortFields, "start_time")
	lim, limArgs := limitSQL(q.Limit, q.Skip)
	rows, err := s.DB.QueryContext(ctx, query+lim, append(c.args, limArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEventFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// FindEventByTitle returns the most recently created event whose title
// contains the given text (case-insensitive), or nil. Events are addressed
// loosely, so this is a partial match, unlike FindTaskByTitle.
func (s *Store) FindEventByTitle(ctx context.Context, accountID, title string) (*Event, error) {
	row := s.DB.QueryRowContext(ctx,
		eventSelect+` WHERE account_id = ? AND title LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT 1`,
		accountID, likePattern(title))
	return scanEvent(row)
}

const eventSelect = `SELECT id, account_id, title, description, location, start_time, end_time,
	cancelled, created_at, updated_at FROM events`

func checkEventTimes(e *Event) error {
	if e.EndTime != nil && !e.EndTime.After(e.StartTime) {
		return ErrEndBeforeStart
	}
	return nil
}

func scanEvent(row *sql.Row) (*Event, error) {
	e, err := scanEventFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanEventFrom(r rowScanner) (*Event, error) {
	var e Event
	var endTime sql.NullTime
	err := r.Scan(&e.ID, &e.AccountID, &e.Title, &e.Description, &e.Location, &e.StartTime, &endTime,
		&e.Cancelled, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		ts := endTime.Time
		e.EndTime = &ts
	}
	return &e, nil
}
