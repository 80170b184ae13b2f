package types

import "context"

// Context keys
type contextKey string

const (
	claimsKey    contextKey = "session_claims"
	accountKey   contextKey = "account"
	requestIDKey contextKey = "request_id"
)

// WithClaims stores the session claims bundle in the context.
func WithClaims(ctx context.Context, claims SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves the session claims from the context.
func GetClaims(ctx context.Context) (SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(SessionClaims)
	return claims, ok
}

// WithAccount stores the authoritative account record in the context.
// Set by the entitlement gate after reloading the account from the
// persistence layer, so downstream handlers never re-fetch it.
func WithAccount(ctx context.Context, account Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// GetAccount retrieves the account record from the context.
func GetAccount(ctx context.Context) (Account, bool) {
	account, ok := ctx.Value(accountKey).(Account)
	return account, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
