package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNegativeAmount is returned when an invoice amount is below zero.
var ErrNegativeAmount = errors.New("invoice amount must not be negative")

// InvoiceQuery describes a filtered invoice listing.
type InvoiceQuery struct {
	Status     string
	ClientName string // case-insensitive partial match
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	DueFrom    *time.Time
	DueTo      *time.Time
	Search     string // case-insensitive match on client name or description

	SortBy   string // issue_date (default), due_date, amount, created_at
	SortDesc bool
	Skip     int
	Limit    int
}

var invoiceSortFields = map[string]string{
	"issue_date": "issue_date",
	"issueDate":  "issue_date",
	"due_date":   "due_date",
	"dueDate":    "due_date",
	"amount":     "amount",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

// CreateInvoice inserts an invoice. Defaults: status Pending, issue date now.
// The overdue rule is applied before the write.
func (s *Store) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.Amount < 0 {
		return ErrNegativeAmount
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	normalizeInvoice(inv, now)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO invoices (id, account_id, client_name, amount, status, issue_date, due_date,
			paid_date, description, line_items, xero_invoice_id, xero_status, xero_sync_error,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.AccountID, inv.ClientName, inv.Amount, inv.Status, inv.IssueDate, inv.DueDate,
		nullTime(inv.PaidDate), inv.Description, marshalLineItems(inv.LineItems),
		inv.XeroInvoiceID, inv.XeroStatus, inv.XeroSyncError, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// GetInvoice returns an invoice by id scoped to an account, or nil when not
// found. The overdue rule is applied to the returned record and, when the
// stored status is stale, written back.
func (s *Store) GetInvoice(ctx context.Context, accountID, id string) (*Invoice, error) {
	row := s.DB.QueryRowContext(ctx, invoiceSelect+` WHERE id = ? AND account_id = ?`, id, accountID)
	inv, err := scanInvoice(row)
	if err != nil || inv == nil {
		return inv, err
	}
	return inv, s.refreshOverdue(ctx, inv)
}

// UpdateInvoice rewrites an invoice's mutable fields.
func (s *Store) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.Amount < 0 {
		return ErrNegativeAmount
	}
	now := time.Now().UTC()
	inv.UpdatedAt = now
	normalizeInvoice(inv, now)

	res, err := s.DB.ExecContext(ctx, `
		UPDATE invoices SET client_name = ?, amount = ?, status = ?, issue_date = ?, due_date = ?,
			paid_date = ?, description = ?, line_items = ?, xero_invoice_id = ?, xero_status = ?,
			xero_sync_error = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		inv.ClientName, inv.Amount, inv.Status, inv.IssueDate, inv.DueDate,
		nullTime(inv.PaidDate), inv.Description, marshalLineItems(inv.LineItems),
		inv.XeroInvoiceID, inv.XeroStatus, inv.XeroSyncError, inv.UpdatedAt,
		inv.ID, inv.AccountID)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteInvoice removes an invoice scoped to an account.
func (s *Store) DeleteInvoice(ctx context.Context, accountID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM invoices WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListInvoices returns invoices matching the query plus the total match
// count. The overdue rule is applied to every returned record.
func (s *Store) ListInvoices(ctx context.Context, accountID string, q InvoiceQuery) ([]*Invoice, int, error) {
	c := &listClause{}
	c.and("account_id = ?", accountID)
	if q.Status != "" {
		// Filter on the effective status, not the stored one: an invoice
		// whose due date passed since its last write must already count as
		// Overdue here, before refreshOverdue persists the change.
		now := time.Now().UTC()
		switch q.Status {
		case InvoiceOverdue:
			c.and("(status = ? OR (status != ? AND due_date > ? AND due_date < ?))",
				InvoiceOverdue, InvoicePaid, time.Time{}, now)
		case InvoicePending:
			c.and("(status = ? AND NOT (due_date > ? AND due_date < ?))",
				InvoicePending, time.Time{}, now)
		default:
			c.and("status = ?", q.Status)
		}
	}
	if q.ClientName != "" {
		c.and(`client_name LIKE ? ESCAPE '\'`, likePattern(q.ClientName))
	}
	if q.IssuedFrom != nil {
		c.and("issue_date >= ?", *q.IssuedFrom)
	}
	if q.IssuedTo != nil {
		c.and("issue_date <= ?", *q.IssuedTo)
	}
	if q.DueFrom != nil {
		c.and("due_date >= ?", *q.DueFrom)
	}
	if q.DueTo != nil {
		c.and("due_date <= ?", *q.DueTo)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		c.and(`(client_name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`, p, p)
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices"+c.whereSQL(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query := invoiceSelect + c.whereSQL() + orderSQL(q.SortBy, q.SortDesc, invoiceSortFields, "issue_date")
	lim, limArgs := limitSQL(q.Limit, q.Skip)
	rows, err := s.DB.QueryContext(ctx, query+lim, append(c.args, limArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoiceFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, inv := range invoices {
		if err := s.refreshOverdue(ctx, inv); err != nil {
			return nil, 0, err
		}
	}
	return invoices, total, nil
}

// LatestInvoice returns the account's most recently issued invoice, or nil.
func (s *Store) LatestInvoice(ctx context.Context, accountID string) (*Invoice, error) {
	row := s.DB.QueryRowContext(ctx,
		invoiceSelect+` WHERE account_id = ? ORDER BY issue_date DESC, created_at DESC LIMIT 1`, accountID)
	inv, err := scanInvoice(row)
	if err != nil || inv == nil {
		return inv, err
	}
	return inv, s.refreshOverdue(ctx, inv)
}

// FindInvoiceByAmount returns the most recently created invoice with the
// exact amount, or nil.
func (s *Store) FindInvoiceByAmount(ctx context.Context, accountID string, amount float64) (*Invoice, error) {
	row := s.DB.QueryRowContext(ctx,
		invoiceSelect+` WHERE account_id = ? AND amount = ? ORDER BY created_at DESC LIMIT 1`,
		accountID, amount)
	inv, err := scanInvoice(row)
	if err != nil || inv == nil {
		return inv, err
	}
	return inv, s.refreshOverdue(ctx, inv)
}

// FindInvoiceByDate returns the most recently created invoice issued or due
// on the given calendar day, or nil.
func (s *Store) FindInvoiceByDate(ctx context.Context, accountID string, day time.Time) (*Invoice, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	row := s.DB.QueryRowContext(ctx,
		invoiceSelect+` WHERE account_id = ?
			AND ((issue_date >= ? AND issue_date < ?) OR (due_date >= ? AND due_date < ?))
			ORDER BY created_at DESC LIMIT 1`,
		accountID, start, end, start, end)
	inv, err := scanInvoice(row)
	if err != nil || inv == nil {
		return inv, err
	}
	return inv, s.refreshOverdue(ctx, inv)
}

// FindInvoiceByClient returns the most recently created invoice whose client
// name contains the given text (case-insensitive), or nil.
func (s *Store) FindInvoiceByClient(ctx context.Context, accountID, client string) (*Invoice, error) {
	row := s.DB.QueryRowContext(ctx,
		invoiceSelect+` WHERE account_id = ? AND client_name LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT 1`,
		accountID, likePattern(client))
	inv, err := scanInvoice(row)
	if err != nil || inv == nil {
		return inv, err
	}
	return inv, s.refreshOverdue(ctx, inv)
}

// SweepOverdue flips every stale Pending invoice past its due date to
// Overdue, across all accounts. Returns the number of invoices updated.
// Used by the scheduler as a backstop to the per-read normalization.
func (s *Store) SweepOverdue(ctx context.Context) (int, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE invoices SET status = ?, updated_at = ?
		WHERE due_date < ? AND status NOT IN (?, ?)`,
		InvoiceOverdue, time.Now().UTC(), time.Now().UTC(), InvoicePaid, InvoiceOverdue)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const invoiceSelect = `SELECT id, account_id, client_name, amount, status, issue_date, due_date,
	paid_date, description, line_items, xero_invoice_id, xero_status, xero_sync_error,
	created_at, updated_at FROM invoices`

// normalizeInvoice applies the overdue rule: due date passed and not paid
// means Overdue, regardless of the stored status.
func normalizeInvoice(inv *Invoice, now time.Time) {
	if inv.Status != InvoicePaid && !inv.DueDate.IsZero() && inv.DueDate.Before(now) {
		inv.Status = InvoiceOverdue
	}
}

// refreshOverdue applies the overdue rule to a loaded record and persists
// the status change when the stored value was stale.
func (s *Store) refreshOverdue(ctx context.Context, inv *Invoice) error {
	before := inv.Status
	normalizeInvoice(inv, time.Now().UTC())
	if inv.Status == before {
		return nil
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		inv.Status, time.Now().UTC(), inv.ID)
	if err != nil {
		return fmt.Errorf("refresh overdue status: %w", err)
	}
	return nil
}

func scanInvoice(row *sql.Row) (*Invoice, error) {
	inv, err := scanInvoiceFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func scanInvoiceFrom(r rowScanner) (*Invoice, error) {
	var inv Invoice
	var paidDate sql.NullTime
	var items string
	err := r.Scan(&inv.ID, &inv.AccountID, &inv.ClientName, &inv.Amount, &inv.Status,
		&inv.IssueDate, &inv.DueDate, &paidDate, &inv.Description, &items,
		&inv.XeroInvoiceID, &inv.XeroStatus, &inv.XeroSyncError, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidDate.Valid {
		ts := paidDate.Time
		inv.PaidDate = &ts
	}
	inv.LineItems = unmarshalLineItems(items)
	return &inv, nil
}
