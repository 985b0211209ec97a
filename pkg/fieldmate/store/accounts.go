package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAccount inserts a new account. A missing ID is generated.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, name, trade, email, phone, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Trade, a.Email, a.Phone, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns an account by id, or nil when not found.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.scanAccount(s.DB.QueryRowContext(ctx,
		`SELECT id, name, trade, email, phone, password_hash, created_at FROM accounts WHERE id = ?`, id))
}

// GetAccountByPhone returns the account bound to a channel phone identifier,
// or nil when none exists.
func (s *Store) GetAccountByPhone(ctx context.Context, phone string) (*Account, error) {
	return s.scanAccount(s.DB.QueryRowContext(ctx,
		`SELECT id, name, trade, email, phone, password_hash, created_at FROM accounts WHERE phone = ?`, phone))
}

// GetAccountByEmail returns the account with the given login email, or nil.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.scanAccount(s.DB.QueryRowContext(ctx,
		`SELECT id, name, trade, email, phone, password_hash, created_at FROM accounts WHERE email = ? COLLATE NOCASE`, email))
}

func (s *Store) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Trade, &a.Email, &a.Phone, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// UpdateAccount persists name, trade, email and phone for an existing account.
func (s *Store) UpdateAccount(ctx context.Context, a *Account) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE accounts SET name = ?, trade = ?, email = ?, phone = ? WHERE id = ?`,
		a.Name, a.Trade, a.Email, a.Phone, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// GetOrCreateConversation returns the account's conversation, creating it
// lazily on first use. Exactly one conversation exists per account.
func (s *Store) GetOrCreateConversation(ctx context.Context, accountID string) (*Conversation, error) {
	var c Conversation
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, account_id, created_at FROM conversations WHERE account_id = ?`, accountID).
		Scan(&c.ID, &c.AccountID, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	c = Conversation{ID: uuid.NewString(), AccountID: accountID, CreatedAt: time.Now().UTC()}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO conversations (id, account_id, created_at) VALUES (?, ?, ?)`,
		c.ID, c.AccountID, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

// AppendMessage stores one immutable message in a conversation.
func (s *Store) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, account_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.AccountID, m.Role, m.Text, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in ascending creation order.
// limit <= 0 returns everything.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `SELECT id, conversation_id, account_id, role, text, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`
	args := []any{conversationID}
	if limit > 0 {
		// Last N messages, still returned oldest-first.
		query = `SELECT id, conversation_id, account_id, role, text, created_at FROM (
			SELECT id, conversation_id, account_id, role, text, created_at
			FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AccountID, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// ClearMessages purges a conversation's history. The conversation row stays.
func (s *Store) ClearMessages(ctx context.Context, conversationID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}
