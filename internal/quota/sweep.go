package quota

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// defaultSweepParallelism bounds concurrent accounts per sweep run.
const defaultSweepParallelism = 8

// Sweep proactively resets every counter whose window has elapsed for the
// given accounts. It is an optimization for reporting freshness only:
// check-and-reset-on-read keeps consumption correct even if the sweep
// never runs, so lost CAS races and per-account store errors are logged
// and skipped rather than failing the run.
//
// Returns the number of counters reset.
func (t *Tracker) Sweep(ctx context.Context, accountIDs []string, now time.Time) (int, error) {
	var resets atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultSweepParallelism)

	for _, accountID := range accountIDs {
		g.Go(func() error {
			for _, name := range types.AllCounters {
				cur, err := t.get(ctx, accountID, name)
				if err != nil {
					t.logger.Warn("sweep: counter read failed, skipping",
						slog.String("account_id", accountID),
						slog.String("counter", string(name)),
						slog.String("error", err.Error()),
					)
					continue
				}
				if cur.IsZero() {
					continue
				}

				fresh := t.CheckAndReset(cur, name, now)
				if fresh.Count == cur.Count && fresh.WindowStart.Equal(cur.WindowStart) {
					continue
				}

				swapped, err := t.cas(ctx, accountID, name, cur, fresh)
				if err != nil {
					t.logger.Warn("sweep: counter reset failed, skipping",
						slog.String("account_id", accountID),
						slog.String("counter", string(name)),
						slog.String("error", err.Error()),
					)
					continue
				}
				if swapped {
					resets.Add(1)
				}
				// A lost race means a concurrent consumer already rolled the
				// window forward; nothing left to do.
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return int(resets.Load()), err
	}
	return int(resets.Load()), nil
}
