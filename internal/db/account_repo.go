package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// AccountRepository provides data access for the accounts table.
//
// Key invariants:
//   - ApplyBillingEvent uses optimistic locking via last_billing_event_at
//     to handle out-of-order provider webhooks: stale or duplicate events
//     are silently ignored (idempotent no-op).
//   - Soft-deleted accounts are invisible to every read and immune to
//     every write.
type AccountRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewAccountRepository creates an AccountRepository backed by the given
// database connection (pool or transaction).
func NewAccountRepository(db DBTX, logger *slog.Logger) *AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRepository{db: db, logger: logger}
}

// accountColumns is the standard column set for account queries. Used
// consistently across all query methods to avoid column drift.
const accountColumns = `a.id, a.email, a.stored_value_cents, a.explicit_vip, a.expires_at,
	a.addon_flags, a.benefit_overrides, a.is_admin, a.last_billing_event_at,
	a.created_at, a.updated_at, a.deleted_at`

// scanAccount scans a single account row. The columns must match the
// order defined in accountColumns. addon_flags and benefit_overrides are
// JSONB; their Go types implement sql.Scanner.
func scanAccount(row pgx.Row) (types.Account, error) {
	var a types.Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.StoredValueCents,
		&a.ExplicitVIP,
		&a.ExpiresAt,
		&a.AddonFlags,
		&a.BenefitOverrides,
		&a.IsAdmin,
		&a.LastBillingEventAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeletedAt,
	)
	return a, err
}

// GetByID retrieves an account by ID. Soft-deleted accounts read as not
// found.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.id = $1 AND a.deleted_at IS NULL`,
		id,
	)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Account{}, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
		}
		return types.Account{}, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve account", err)
	}
	return a, nil
}

// GetByEmail retrieves an account by email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.email = $1 AND a.deleted_at IS NULL`,
		email,
	)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Account{}, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
		}
		return types.Account{}, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve account", err)
	}
	return a, nil
}

// UpdateEntitlements persists the operator-editable entitlement fields as
// raw inputs. Derived results (tier, merged benefits) are never stored;
// they are recomputed from these fields on every request.
func (r *AccountRepository) UpdateEntitlements(ctx context.Context, a types.Account) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET stored_value_cents = $1,
		     explicit_vip = $2,
		     expires_at = $3,
		     addon_flags = $4,
		     benefit_overrides = $5,
		     updated_at = NOW()
		 WHERE id = $6
		   AND deleted_at IS NULL`,
		a.StoredValueCents,
		a.ExplicitVIP,
		a.ExpiresAt,
		a.AddonFlags,
		a.BenefitOverrides,
		a.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update account entitlements", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// ApplyBillingEvent records a billing-status change from the payment
// provider: the new stored value and expiration, stamped with the event
// time. The WHERE clause enforces optimistic locking: an event older than
// or equal to the last applied one affects zero rows and is ignored.
func (r *AccountRepository) ApplyBillingEvent(
	ctx context.Context,
	accountID string,
	valueCents *int64,
	expiresAt *time.Time,
	eventAt time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET stored_value_cents = $1,
		     expires_at = $2,
		     last_billing_event_at = $3,
		     updated_at = NOW()
		 WHERE id = $4
		   AND deleted_at IS NULL
		   AND (last_billing_event_at IS NULL OR last_billing_event_at < $3)`,
		valueCents,
		expiresAt,
		eventAt,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply billing event", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the account is gone or the event is stale. Stale events
		// are the common case with webhook retries; log and move on.
		r.logger.Info("billing event ignored (stale or unknown account)",
			slog.String("account_id", accountID),
			slog.Time("event_at", eventAt),
		)
		return nil
	}
	return nil
}

// ApplyBillingExpiry moves only the expiration, leaving the stored value
// untouched. Used for events that carry no amount, such as payment
// failures; the same event-ordering guard applies.
func (r *AccountRepository) ApplyBillingExpiry(
	ctx context.Context,
	accountID string,
	expiresAt time.Time,
	eventAt time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET expires_at = $1,
		     last_billing_event_at = $2,
		     updated_at = NOW()
		 WHERE id = $3
		   AND deleted_at IS NULL
		   AND (last_billing_event_at IS NULL OR last_billing_event_at < $2)`,
		expiresAt,
		eventAt,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply billing expiry", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Info("billing expiry ignored (stale or unknown account)",
			slog.String("account_id", accountID),
			slog.Time("event_at", eventAt),
		)
	}
	return nil
}

// ListIDs returns the IDs of all live accounts, for the counter sweep.
func (r *AccountRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM accounts WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list accounts", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan account id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate accounts", err)
	}
	return ids, nil
}
