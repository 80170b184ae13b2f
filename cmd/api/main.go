// Package main is the entry point for the entitlement API server.
//
// It loads configuration, builds the derived rule tables, connects the
// database pool, wires the repositories and the quota tracker into the
// core chassis, and starts listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT,
// SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/api/handlers"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/billing"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/db"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit
// on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("entitlement API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	rt, err := config.BuildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("building rule tables: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	accounts := db.NewAccountRepository(pool, logger)
	counters := db.NewCounterRepo(pool)
	tracker := quota.NewTracker(counters, rt.Windows, logger)

	// In local mode the bearer token is treated as the account ID, which
	// spares a seeded sessions table during development. The chassis
	// reloads the account from the repository regardless, so no
	// entitlement state can be forged this way.
	var sessions core.SessionResolver = db.NewSessionRepository(pool, logger)
	if cfg.Environment == "local" {
		sessions = devSessionResolver{}
		logger.Warn("using development session resolver; tokens are account IDs")
	}

	srv, err := core.NewServer(cfg, rt, accounts, tracker, sessions, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	profileHandler := handlers.NewProfileHandler(rt, tracker, logger, srv.Now)
	actionHandler := handlers.NewActionHandler(rt, tracker, logger, srv.Now)
	adminHandler := handlers.NewAdminHandler(rt, accounts, tracker, logger, srv.Now)

	var verifier billing.WebhookVerifier = &billing.StripeVerifier{}
	if cfg.Environment == "local" {
		verifier = &billing.StubVerifier{Logger: logger}
	}
	webhookHandler := handlers.NewBillingWebhookHandler(
		verifier,
		accounts,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) {
			r.Route("/me", profileHandler.RegisterRoutes)
		},
		actionHandler.RegisterRoutes,
		func(r chi.Router) {
			r.Route("/admin", func(r chi.Router) {
				r.Use(srv.RequireAdmin)
				adminHandler.RegisterRoutes(r)
			})
		},
		func(r chi.Router) {
			r.Route("/billing", webhookHandler.RegisterRoutes)
		},
	)

	srv.MountRoutes()

	return runHTTPServer(ctx, srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful
// shutdown.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// devSessionResolver maps the bearer token directly to an account ID.
// Local development only.
type devSessionResolver struct{}

func (devSessionResolver) Resolve(_ context.Context, token string) (types.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.SessionClaims{}, types.NewAppError(types.ErrCodeAuthSessionInvalid, "empty session token", nil)
	}
	return types.SessionClaims{AccountID: token}, nil
}

// newLogger creates a structured slog.Logger configured for the given
// log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
