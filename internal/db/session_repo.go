package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// SessionRepository resolves opaque session tokens issued by the identity
// provider into claims. Tokens are stored hashed; the raw token never
// touches the database.
type SessionRepository struct {
	db     DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionRepository creates a session repository backed by the given
// database handle.
func NewSessionRepository(db DBTX, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepository{db: db, logger: logger, now: time.Now}
}

// Resolve looks up the session by token hash and returns the claims
// bundle. The hints are whatever the identity provider recorded at
// session creation; the access gate reloads the account regardless.
func (r *SessionRepository) Resolve(ctx context.Context, token string) (types.SessionClaims, error) {
	sum := sha256.Sum256([]byte(token))
	hash := hex.EncodeToString(sum[:])

	var claims types.SessionClaims
	var expiresAt time.Time

	err := r.db.QueryRow(ctx,
		`SELECT s.account_id, s.email, s.vip_hint, s.admin_hint, s.expires_at
		 FROM sessions s
		 WHERE s.token_hash = $1
		   AND s.revoked_at IS NULL`,
		hash,
	).Scan(&claims.AccountID, &claims.Email, &claims.VIPHint, &claims.AdminHint, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.SessionClaims{}, types.NewAppError(types.ErrCodeAuthSessionInvalid, "unknown session token", nil)
		}
		return types.SessionClaims{}, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve session", err)
	}

	if expiresAt.Before(r.now()) {
		return types.SessionClaims{}, types.NewAppError(types.ErrCodeAuthSessionExpired, "session expired", nil)
	}
	return claims, nil
}
