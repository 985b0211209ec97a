package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds SQLite configuration.
type Config struct {
	Path        string `yaml:"path"`
	JournalMode string `yaml:"journal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Store wraps the SQLite database connection.
type Store struct {
	DB     *sql.DB
	Config Config
	logger *slog.Logger
}

// Open opens or creates the FieldMate database and applies the schema.
func Open(config Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Path == "" {
		config.Path = "./data/fieldmate.db"
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5000
	}

	// Ensure parent directory exists (skip for in-memory databases).
	if !strings.HasPrefix(config.Path, ":memory:") && !strings.Contains(config.Path, "mode=memory") {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON&_loc=UTC",
		config.Path, config.JournalMode, config.BusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", config.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		DB:     db,
		Config: config,
		logger: logger.With("component", "store"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping() error {
	return s.DB.Ping()
}

// Status returns detailed health status for the gateway's health endpoint.
func (s *Store) Status() map[string]any {
	stats := s.DB.Stats()
	var version string
	if err := s.DB.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		version = "unknown"
	}
	return map[string]any{
		"healthy":    s.DB.Ping() == nil,
		"version":    version,
		"open_conns": stats.OpenConnections,
		"in_use":     stats.InUse,
		"idle":       stats.Idle,
	}
}

// migrate applies the schema. Idempotent via IF NOT EXISTS, with a
// schema_version table recording the applied version.
func (s *Store) migrate() error {
	if _, err := s.DB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var current int
	if err := s.DB.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current == 0 {
		if _, err := s.DB.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	trade         TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_phone ON accounts(phone);
CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id),
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	role            TEXT NOT NULL,
	text            TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	completed    INTEGER NOT NULL DEFAULT 0,
	completed_at DATETIME,
	due_date     DATETIME NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'Medium',
	status       TEXT NOT NULL DEFAULT 'Not Started',
	tags         TEXT NOT NULL DEFAULT '[]',
	project      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_account ON tasks(account_id, due_date);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	start_time  DATETIME NOT NULL,
	end_time    DATETIME,
	cancelled   INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_account ON events(account_id, start_time);

CREATE TABLE IF NOT EXISTS invoices (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	client_name     TEXT NOT NULL,
	amount          REAL NOT NULL,
	status          TEXT NOT NULL DEFAULT 'Pending',
	issue_date      DATETIME NOT NULL,
	due_date        DATETIME NOT NULL,
	paid_date       DATETIME,
	description     TEXT NOT NULL DEFAULT '',
	line_items      TEXT NOT NULL DEFAULT '[]',
	xero_invoice_id TEXT NOT NULL DEFAULT '',
	xero_status     TEXT NOT NULL DEFAULT '',
	xero_sync_error TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_account ON invoices(account_id, issue_date);
`
