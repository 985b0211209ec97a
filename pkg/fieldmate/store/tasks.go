package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskQuery describes a filtered task listing.
type TaskQuery struct {
	Completed *bool
	Status    string
	Priority  string
	Tag       string
	TagsAll   []string
	Project   string
	DueFrom   *time.Time
	DueTo     *time.Time
	Search    string // case-insensitive match on title or description

	SortBy   string // due_date (default), created_at, priority, title
	SortDesc bool
	Skip     int
	Limit    int
}

var taskSortFields = map[string]string{
	"due_date":   "due_date",
	"dueDate":    "due_date",
	"created_at": "created_at",
	"createdAt":  "created_at",
	"priority":   "priority",
	"title":      "title",
	"status":     "status",
}

// CreateTask inserts a task. Defaults: priority Medium, status Not Started.
// The completed/status/completed_at lockstep is normalized before writing.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusNotStarted
	}
	normalizeTask(t, now)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tasks (id, account_id, title, description, completed, completed_at,
			due_date, priority, status, tags, project, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Title, t.Description, t.Completed, nullTime(t.CompletedAt),
		t.DueDate, t.Priority, t.Status, marshalTags(t.Tags), t.Project, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns a task by id scoped to an account, or nil when not found
// (including when the task belongs to another account).
func (s *Store) GetTask(ctx context.Context, accountID, id string) (*Task, error) {
	row := s.DB.QueryRowContext(ctx, taskSelect+` WHERE id = ? AND account_id = ?`, id, accountID)
	return scanTask(row)
}

// UpdateTask rewrites a task's mutable fields, re-normalizing the
// completion lockstep first.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	now := time.Now().UTC()
	t.UpdatedAt = now
	normalizeTask(t, now)

	res, err := s.DB.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, completed = ?, completed_at = ?,
			due_date = ?, priority = ?, status = ?, tags = ?, project = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		t.Title, t.Description, t.Completed, nullTime(t.CompletedAt),
		t.DueDate, t.Priority, t.Status, marshalTags(t.Tags), t.Project, t.UpdatedAt,
		t.ID, t.AccountID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTask removes a task scoped to an account.
func (s *Store) DeleteTask(ctx context.Context, accountID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTasks returns tasks matching the query plus the total match count
// (before pagination). Default sort is ascending due date.
func (s *Store) ListTasks(ctx context.Context, accountID string, q TaskQuery) ([]*Task, int, error) {
	c := &listClause{}
	c.and("account_id = ?", accountID)
	if q.Completed != nil {
		c.and("completed = ?", *q.Completed)
	}
	if q.Status != "" {
		c.and("status = ?", q.Status)
	}
	if q.Priority != "" {
		c.and("priority = ?", q.Priority)
	}
	if q.Tag != "" {
		c.and(`tags LIKE ? ESCAPE '\'`, likePattern(`"`+q.Tag+`"`))
	}
	for _, tag := range q.TagsAll {
		c.and(`tags LIKE ? ESCAPE '\'`, likePattern(`"`+tag+`"`))
	}
	if q.Project != "" {
		c.and("project = ?", q.Project)
	}
	if q.DueFrom != nil {
		c.and("due_date >= ?", *q.DueFrom)
	}
	if q.DueTo != nil {
		c.and("due_date <= ?", *q.DueTo)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		c.and(`(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`, p, p)
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+c.whereSQL(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := taskSelect + c.whereSQL() + orderSQL(q.SortBy, q.SortDesc, taskSortFields, "due_date")
	lim, limArgs := limitSQL(q.Limit, q.Skip)
	rows, err := s.DB.QueryContext(ctx, query+lim, append(c.args, limArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// FindTaskByTitle returns the most recently created task whose title matches
// exactly (case-insensitive), or nil. Task titles are addressed as exact
// commands; contrast with FindEventByTitle.
func (s *Store) FindTaskByTitle(ctx context.Context, accountID, title string) (*Task, error) {
	row := s.DB.QueryRowContext(ctx,
		taskSelect+` WHERE account_id = ? AND title = ? COLLATE NOCASE ORDER BY created_at DESC LIMIT 1`,
		accountID, title)
	return scanTask(row)
}

const taskSelect = `SELECT id, account_id, title, description, completed, completed_at,
	due_date, priority, status, tags, project, created_at, updated_at FROM tasks`

// normalizeTask keeps completed, status and completed_at in lockstep:
// completed == true ⇔ status == Completed ⇔ completed_at set.
func normalizeTask(t *Task, now time.Time) {
	if t.Status == StatusCompleted {
		t.Completed = true
	}
	if t.Completed {
		t.Status = StatusCompleted
		if t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
	} else {
		t.CompletedAt = nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (*Task, error) {
	t, err := scanTaskFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func scanTaskRows(rows *sql.Rows) (*Task, error) {
	return scanTaskFrom(rows)
}

func scanTaskFrom(r rowScanner) (*Task, error) {
	var t Task
	var completedAt sql.NullTime
	var tags string
	err := r.Scan(&t.ID, &t.AccountID, &t.Title, &t.Description, &t.Completed, &completedAt,
		&t.DueDate, &t.Priority, &t.Status, &tags, &t.Project, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	t.Tags = unmarshalTags(tags)
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
