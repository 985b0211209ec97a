// Package gateway provides the HTTP API surface: the chat endpoint, account
// signup and login, webhook ingestion, and health.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
)

// Gateway is the HTTP API server.
type Gateway struct {
	assistant *assistant.Assistant
	config    assistant.GatewayConfig
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a Gateway.
func New(a *assistant.Assistant, cfg assistant.GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8090"
	}
	return &Gateway{
		assistant: a,
		config:    cfg,
		logger:    logger.With("component", "gateway"),
	}
}

// Start starts the HTTP server in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()
	mux := http.NewServeMux()

	// Health (always public)
	mux.HandleFunc("/health", g.handleHealth)

	// API routes
	mux.HandleFunc("/api/chat", g.handleChat)
	mux.HandleFunc("/api/extract-events", g.handleExtractEvents)
	mux.HandleFunc("/api/signup", g.handleSignup)
	mux.HandleFunc("/api/login", g.handleLogin)

	// Inbound webhook for hosted messaging providers
	mux.HandleFunc("/webhook/message", g.handleWebhookMessage)

	handler := g.loggingMiddleware(g.securityHeadersMiddleware(g.corsMiddleware(g.authMiddleware(mux))))
	g.server = &http.Server{
		Addr:    g.config.Address,
		Handler: handler,
	}

	// Warn when the gateway has no auth token and is bound to a non-loopback
	// address.
	if g.config.AuthToken == "" {
		host, _, _ := net.SplitHostPort(g.config.Address)
		if host == "" {
			host = "0.0.0.0"
		}
		ip := net.ParseIP(host)
		isLoopback := ip != nil && ip.IsLoopback()
		if !isLoopback && host != "localhost" {
			g.logger.Warn("SECURITY: gateway has no auth token and is bound to a non-loopback address, anyone on the network can access the API",
				"address", g.config.Address)
		}
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", g.config.Address)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping...")
	return g.server.Shutdown(ctx)
}
