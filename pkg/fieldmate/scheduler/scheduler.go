// Package scheduler runs FieldMate's periodic jobs on cron schedules:
// the overdue-invoice sweep and the morning task-reminder digest.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// Config holds scheduler configuration.
type Config struct {
	// Enabled turns the scheduler on.
	Enabled bool `yaml:"enabled"`

	// OverdueSweep is the cron schedule for flipping stale invoices to
	// Overdue. The per-read normalization already guarantees correctness;
	// the sweep keeps stored rows fresh for external readers.
	OverdueSweep string `yaml:"overdue_sweep"`

	// TaskReminder is the cron schedule for the daily task digest.
	TaskReminder string `yaml:"task_reminder"`
}

// DefaultConfig returns a Config with working defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		OverdueSweep: "@hourly",
		TaskReminder: "0 7 * * *",
	}
}

// Notifier pushes a proactive message to an account's channel.
type Notifier interface {
	Notify(ctx context.Context, account *store.Account, text string) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cfg      Config
	store    *store.Store
	notifier Notifier
	cron     *cron.Cron
	logger   *slog.Logger
}

// New creates a scheduler. notifier may be nil, in which case reminder jobs
// only log.
func New(cfg Config, s *store.Store, notifier Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OverdueSweep == "" {
		cfg.OverdueSweep = "@hourly"
	}
	if cfg.TaskReminder == "" {
		cfg.TaskReminder = "0 7 * * *"
	}
	return &Scheduler{
		cfg:      cfg,
		store:    s,
		notifier: notifier,
		cron:     cron.New(),
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers and starts the cron jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.OverdueSweep, func() { s.runOverdueSweep(ctx) }); err != nil {
		return fmt.Errorf("register overdue sweep %q: %w", s.cfg.OverdueSweep, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.TaskReminder, func() { s.runTaskReminders(ctx) }); err != nil {
		return fmt.Errorf("register task reminder %q: %w", s.cfg.TaskReminder, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"overdue_sweep", s.cfg.OverdueSweep,
		"task_reminder", s.cfg.TaskReminder)
	return nil
}

// Stop stops the cron scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runOverdueSweep(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.store.SweepOverdue(jobCtx)
	if err != nil {
		s.logger.Error("overdue sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("overdue sweep", "invoices_updated", n)
	}
}

// runTaskReminders sends each account with tasks due today a one-line digest.
func (s *Scheduler) runTaskReminders(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	accounts, err := s.accountsWithDueTasks(jobCtx)
	if err != nil {
		s.logger.Error("task reminder query failed", "error", err)
		return
	}
	for accountID, count := range accounts {
		account, err := s.store.GetAccount(jobCtx, accountID)
		if err != nil || account == nil {
			continue
		}
		text := fmt.Sprintf("Morning! You have %d task(s) due today.", count)
		if s.notifier == nil {
			s.logger.Info("task reminder (no notifier)", "account", accountID, "due", count)
			continue
		}
		if err := s.notifier.Notify(jobCtx, account, text); err != nil {
			s.logger.Warn("task reminder delivery failed", "account", accountID, "error", err)
		}
	}
}

func (s *Scheduler) accountsWithDueTasks(ctx context.Context) (map[string]int, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.store.DB.QueryContext(ctx, `
		SELECT account_id, COUNT(*) FROM tasks
		WHERE completed = 0 AND due_date >= ? AND due_date < ?
		GROUP BY account_id`, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
