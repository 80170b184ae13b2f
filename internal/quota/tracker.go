package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// CounterStore abstracts the backing store for quota counters. Production
// uses PostgreSQL conditional updates; dev/test uses the in-memory store.
// Implementations must not share a lock across different keys: two
// accounts, or two counters on one account, never contend.
type CounterStore interface {
	// Get returns the counter for (accountID, name). A counter that has
	// never been written is returned as the zero Counter, not an error.
	Get(ctx context.Context, accountID string, name types.CounterName) (types.Counter, error)

	// CompareAndSwap atomically replaces the counter with next if the
	// stored state still equals expected. It returns false without error
	// when the comparison fails (a lost race, retried by the caller).
	CompareAndSwap(ctx context.Context, accountID string, name types.CounterName, expected, next types.Counter) (bool, error)
}

// Result is the outcome of a consumption attempt. When Allowed is false,
// Reason carries the machine-readable denial reason for the presentation
// layer.
type Result struct {
	Allowed bool
	// Remaining is the number of slots left after this call; nil when the
	// limit is unlimited.
	Remaining *int
	ResetsAt  time.Time
	Reason    types.DenyReason
}

// defaultMaxRetries bounds the read-CAS-retry cycle on lost races.
const defaultMaxRetries = 3

// storeOp is the payload threaded through the circuit breaker for both
// store operations.
type storeOp struct {
	counter types.Counter
	swapped bool
}

// Tracker implements check-and-increment quota semantics over a
// CounterStore. The store operations run behind a circuit breaker: when
// the store is unhealthy the tracker fails closed immediately instead of
// piling timeouts onto every request.
type Tracker struct {
	store      CounterStore
	windows    *Windows
	logger     *slog.Logger
	maxRetries int
	breaker    *gobreaker.CircuitBreaker[storeOp]
}

// NewTracker creates a Tracker over the given store and window rules.
func NewTracker(store CounterStore, windows *Windows, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[storeOp](gobreaker.Settings{
		Name:        "quota-counter-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Tracker{
		store:      store,
		windows:    windows,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		breaker:    cb,
	}
}

// Windows exposes the window rules for callers that need reset times.
func (t *Tracker) Windows() *Windows {
	return t.windows
}

// CheckAndReset returns the counter as it stands in now's window: if the
// stored window has been crossed, the count is zeroed and the window start
// advanced; otherwise the counter is returned unchanged. Calling it twice
// with the same now is a no-op the second time.
func (t *Tracker) CheckAndReset(c types.Counter, name types.CounterName, now time.Time) types.Counter {
	kind := name.Window()
	if t.windows.Crossed(kind, c.WindowStart, now) {
		return types.Counter{Count: 0, WindowStart: t.windows.Start(kind, now)}
	}
	return c
}

// TryConsume runs check-and-reset and then attempts to claim one slot
// against the limit. A nil limit is unlimited. The increment is a
// compare-and-swap keyed by (accountID, name); on a lost race the cycle
// retries with fresh state, bounded by maxRetries.
//
// Failure policy: a store error, an open breaker, or retry exhaustion all
// deny with reason "unavailable" -- never silently grant -- and the
// underlying error is returned for logging alongside the fail-closed
// Result.
func (t *Tracker) TryConsume(ctx context.Context, accountID string, name types.CounterName, limit *int, now time.Time) (Result, error) {
	resetsAt := t.windows.NextReset(name.Window(), now)
	unavailable := Result{Allowed: false, ResetsAt: resetsAt, Reason: types.DenyReasonUnavailable}

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		cur, err := t.get(ctx, accountID, name)
		if err != nil {
			return unavailable, types.NewAppError(types.ErrCodeQuotaStore, "counter read failed", err)
		}

		fresh := t.CheckAndReset(cur, name, now)

		if limit != nil && fresh.Count >= *limit {
			zero := 0
			return Result{
				Allowed:   false,
				Remaining: &zero,
				ResetsAt:  resetsAt,
				Reason:    types.DenyReasonQuota,
			}, nil
		}

		next := types.Counter{Count: fresh.Count + 1, WindowStart: fresh.WindowStart}
		swapped, err := t.cas(ctx, accountID, name, cur, next)
		if err != nil {
			return unavailable, types.NewAppError(types.ErrCodeQuotaStore, "counter update failed", err)
		}
		if swapped {
			var remaining *int
			if limit != nil {
				r := *limit - next.Count
				remaining = &r
			}
			return Result{Allowed: true, Remaining: remaining, ResetsAt: resetsAt}, nil
		}

		t.logger.Debug("counter swap lost race, retrying",
			slog.String("account_id", accountID),
			slog.String("counter", string(name)),
			slog.Int("attempt", attempt),
		)
	}

	return unavailable, types.NewAppError(types.ErrCodeQuotaStore, "counter update retries exhausted", nil)
}

// Reset zeroes a counter by administrative action. This is the only
// permitted decrement outside a window rollover.
func (t *Tracker) Reset(ctx context.Context, accountID string, name types.CounterName, now time.Time) error {
	target := types.Counter{Count: 0, WindowStart: t.windows.Start(name.Window(), now)}

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		cur, err := t.get(ctx, accountID, name)
		if err != nil {
			return types.NewAppError(types.ErrCodeQuotaStore, "counter read failed", err)
		}
		swapped, err := t.cas(ctx, accountID, name, cur, target)
		if err != nil {
			return types.NewAppError(types.ErrCodeQuotaStore, "counter reset failed", err)
		}
		if swapped {
			t.logger.Info("counter reset by administrator",
				slog.String("account_id", accountID),
				slog.String("counter", string(name)),
			)
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeQuotaStore, "counter reset retries exhausted", nil)
}

// CounterView is a read-only snapshot of one counter for reporting.
type CounterView struct {
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resets_at"`
}

// Snapshot returns the effective usage of every counter for the account
// as of now. Counters whose window has elapsed report zero usage; the
// persisted reset happens lazily on the next consumption, so the snapshot
// itself never writes.
func (t *Tracker) Snapshot(ctx context.Context, accountID string, now time.Time) (map[types.CounterName]CounterView, error) {
	views := make(map[types.CounterName]CounterView, len(types.AllCounters))
	for _, name := range types.AllCounters {
		cur, err := t.get(ctx, accountID, name)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeQuotaStore, "counter read failed", err)
		}
		fresh := t.CheckAndReset(cur, name, now)
		views[name] = CounterView{
			Used:     fresh.Count,
			ResetsAt: t.windows.NextReset(name.Window(), now),
		}
	}
	return views, nil
}

func (t *Tracker) get(ctx context.Context, accountID string, name types.CounterName) (types.Counter, error) {
	op, err := t.breaker.Execute(func() (storeOp, error) {
		c, err := t.store.Get(ctx, accountID, name)
		return storeOp{counter: c}, err
	})
	if err != nil {
		return types.Counter{}, err
	}
	return op.counter, nil
}

func (t *Tracker) cas(ctx context.Context, accountID string, name types.CounterName, expected, next types.Counter) (bool, error) {
	op, err := t.breaker.Execute(func() (storeOp, error) {
		ok, err := t.store.CompareAndSwap(ctx, accountID, name, expected, next)
		return storeOp{swapped: ok}, err
	})
	if err != nil {
		return false, err
	}
	return op.swapped, nil
}
