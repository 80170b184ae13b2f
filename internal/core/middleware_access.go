package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// sessionPublicPaths lists URL paths exempt from session resolution.
var sessionPublicPaths = map[string]bool{
	"/health":              true,
	"/v1/billing/webhooks": true, // authenticated by signature, not session
}

// SessionMiddleware resolves the Bearer token into a claims bundle and
// injects it into the request context. Claims are hints: authoritative
// state is re-read by the entitlement gate. Returns 401 with a distinct
// code when the token is missing, invalid, or expired.
//
// If the Sessions field on Server is nil (e.g. during tests that don't
// inject a resolver), the middleware passes through.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Sessions == nil || sessionPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthSessionMissing,
				"Bearer token is required",
				nil,
			))
			return
		}

		claims, err := s.Sessions.Resolve(r.Context(), token)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) {
				Error(w, r, appErr)
				return
			}
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthSessionInvalid,
				"invalid session token",
				err,
			))
			return
		}

		ctx := types.WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken parses the Authorization header value and returns the
// token string. Expects "Bearer <token>" with a case-insensitive scheme
// per RFC 7235; returns empty string when the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// EntitlementGate re-establishes authoritative account state and runs the
// access policy before dispatching to protected handlers.
//
//  1. Reads the claims injected by SessionMiddleware (401 if absent).
//  2. Reloads the account from the repository: claims may be stale
//     relative to administrative changes, so hints are never trusted for
//     the decision.
//  3. Evaluates the protected-path policy against the gated path (the
//     request path with the version prefix stripped).
//  4. On denial, writes the mapped error with the machine-readable reason
//     in the details; on allow, stores the account in the context so
//     downstream handlers never re-fetch it.
//
// The gate never touches quota counters; consumption happens inside the
// action handlers after access is granted.
func (s *Server) EntitlementGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := types.GetClaims(r.Context())
		if !ok {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthSessionMissing,
				"session required",
				nil,
			))
			return
		}

		account, err := s.Accounts.GetByID(r.Context(), claims.AccountID)
		if err != nil {
			Error(w, r, err)
			return
		}

		now := s.Now()
		decision := s.Runtime.Policy.Decide(account, gatedPath(r.URL.Path), now)
		if !decision.Allowed {
			s.Logger.Info("access denied",
				slog.String("account_id", account.ID),
				slog.String("path", r.URL.Path),
				slog.String("reason", string(decision.Reason)),
			)
			code := types.ErrorCodeForDenial(decision.Reason)
			Error(w, r, types.NewAppError(code, "access denied", nil).
				WithDetails(map[string]any{"reason": string(decision.Reason)}))
			return
		}

		ctx := types.WithAccount(r.Context(), account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// gatedPath strips the API version prefix so policy rules are written
// against stable paths ("/downloads"), not versioned ones.
func gatedPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1"); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
		if rest == "" {
			return "/"
		}
		return rest
	}
	return path
}

// RequireAdmin guards the administrative surface. It runs after the
// entitlement gate, so the authoritative account is already in context.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := types.GetAccount(r.Context())
		if !ok || !account.IsAdmin {
			Error(w, r, types.NewAppError(
				types.ErrCodePermissionAdmin,
				"administrator access required",
				nil,
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}
