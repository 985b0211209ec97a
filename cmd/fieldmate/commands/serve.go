package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/channels"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/channels/whatsapp"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/gateway"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/scheduler"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/tts"
)

// newServeCmd creates the `fieldmate serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon with the HTTP gateway and WhatsApp channel",
		Long: `Start FieldMate as a daemon service: the HTTP gateway for the web
chat frontend, the WhatsApp channel (when enabled), and the scheduled
jobs (overdue invoice sweep, morning task digest).

Examples:
  fieldmate serve
  fieldmate serve --config ./fieldmate.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd)

	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	acct := accounting.NewHTTPClient(cfg.Accounting, logger)
	mail := mailer.New(cfg.Mailer, logger)
	a := assistant.New(cfg, st, acct, mail, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Voice support: one OpenAI provider serves both directions.
	var speech tts.Provider
	var transcriber tts.Transcriber
	if cfg.TTS.Enabled {
		provider := tts.NewOpenAIProvider(cfg.TTS)
		speech = provider
		transcriber = provider
	}
	router := channels.NewRouter(a, speech, transcriber, cfg.TTS.Voice, logger)

	// WhatsApp channel.
	var wa *whatsapp.WhatsApp
	if cfg.WhatsApp.Enabled {
		wa = whatsapp.New(whatsappConfig(cfg.WhatsApp), logger)
		if err := wa.Connect(ctx); err != nil {
			logger.Error("failed to connect WhatsApp", "error", err)
			wa = nil
		} else {
			go router.Run(ctx, wa)
			logger.Info("WhatsApp channel running")
		}
	}

	// Scheduled jobs. Reminders go out over WhatsApp when it is up.
	var notifier scheduler.Notifier
	if wa != nil {
		notifier = channels.NewNotifier(wa)
	}
	sched := scheduler.New(cfg.Scheduler, st, notifier, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
	}

	// HTTP gateway.
	gw := gateway.New(a, cfg.Gateway, logger)
	if err := gw.Start(ctx); err != nil {
		logger.Error("failed to start gateway", "error", err)
	} else {
		logger.Info("gateway running", "address", cfg.Gateway.Address)
	}

	logger.Info("FieldMate running. Press Ctrl+C to stop.", "name", cfg.Name, "model", cfg.Model)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		sched.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := gw.Stop(shutdownCtx); err != nil {
			logger.Warn("gateway shutdown", "error", err)
		}
		if wa != nil {
			if err := wa.Disconnect(); err != nil {
				logger.Warn("WhatsApp disconnect", "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}

	cancel()
	return nil
}

// whatsappConfig maps the core's channel settings onto the adapter's config.
// The core declares its own mirror struct so it never imports the adapter.
func whatsappConfig(cfg assistant.WhatsAppConfig) whatsapp.Config {
	return whatsapp.Config{
		Enabled:              cfg.Enabled,
		SessionPath:          cfg.SessionPath,
		DeviceName:           cfg.DeviceName,
		ReconnectBackoff:     cfg.ReconnectBackoff,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		MaxMediaSizeMB:       cfg.MaxMediaSizeMB,
	}
}

// loadConfigFromFlags resolves the config path from the --config flag and
// loads it.
func loadConfigFromFlags(cmd *cobra.Command) (*assistant.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return assistant.LoadConfig(path)
}

// buildLogger creates the daemon logger honoring the --verbose flag.
func buildLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
