package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// CounterRepo is the PostgreSQL quota.CounterStore. Each counter is one
// row keyed by (account_id, counter); the compare-and-swap is a single
// conditional statement, so concurrent consumers on the same counter
// serialize on the row without any advisory locking, and different
// counters never contend.
type CounterRepo struct {
	db DBTX
}

// NewCounterRepo creates a CounterRepo backed by the given database
// connection (pool or transaction).
func NewCounterRepo(db DBTX) *CounterRepo {
	return &CounterRepo{db: db}
}

// Get returns the counter for (accountID, name). A counter that has never
// been written reads as the zero Counter, not an error.
func (r *CounterRepo) Get(ctx context.Context, accountID string, name types.CounterName) (types.Counter, error) {
	var c types.Counter
	err := r.db.QueryRow(ctx,
		`SELECT count, window_start
		 FROM quota_counters
		 WHERE account_id = $1 AND counter = $2`,
		accountID, string(name),
	).Scan(&c.Count, &c.WindowStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Counter{}, nil
		}
		return types.Counter{}, err
	}
	return c, nil
}

// CompareAndSwap atomically replaces the counter with next if the stored
// state still equals expected. A zero expected counter means "no row
// yet": the swap becomes an insert that loses cleanly to a concurrent
// first writer via ON CONFLICT DO NOTHING. Returns false without error on
// a lost race.
func (r *CounterRepo) CompareAndSwap(ctx context.Context, accountID string, name types.CounterName, expected, next types.Counter) (bool, error) {
	if expected.IsZero() {
		tag, err := r.db.Exec(ctx,
			`INSERT INTO quota_counters (account_id, counter, count, window_start)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (account_id, counter) DO NOTHING`,
			accountID, string(name), next.Count, next.WindowStart,
		)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE quota_counters
		 SET count = $1, window_start = $2
		 WHERE account_id = $3 AND counter = $4
		   AND count = $5 AND window_start = $6`,
		next.Count, next.WindowStart,
		accountID, string(name),
		expected.Count, expected.WindowStart,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
