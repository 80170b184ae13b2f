// Package main is the entry point for the quota sweeper, a small worker
// that walks every live account on an interval and rolls elapsed counter
// windows forward. The API resets counters lazily on access; the sweeper
// keeps dormant accounts from accumulating stale windows so snapshots
// and dashboards read correctly without a request.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/db"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("quota sweeper starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"interval", cfg.Quota.SweepInterval.String(),
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
	tracker := quota.NewTracker(db.NewCounterRepo(pool), rt.Windows, logger)

	// Sweep once at startup, then on the interval. A failed pass is
	// logged and retried on the next tick; counters self-heal lazily on
	// access anyway.
	sweep(ctx, logger, accounts, tracker)

	ticker := time.NewTicker(cfg.Quota.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped cleanly")
			return nil
		case <-ticker.C:
			sweep(ctx, logger, accounts, tracker)
		}
	}
}

func sweep(ctx context.Context, logger *slog.Logger, accounts *db.AccountRepository, tracker *quota.Tracker) {
	start := time.Now()

	ids, err := accounts.ListIDs(ctx)
	if err != nil {
		logger.Error("sweep aborted: listing accounts failed", "error", err)
		return
	}

	resets, err := tracker.Sweep(ctx, ids, start)
	if err != nil {
		logger.Error("sweep pass failed", "error", err)
		return
	}

	logger.Info("sweep pass complete",
		"accounts", len(ids),
		"resets", resets,
		"elapsed", time.Since(start).String(),
	)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
