package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// ProfileHandler serves the self-service entitlement view: the account's
// resolved tier, add-on charges, and effective benefits with live usage.
type ProfileHandler struct {
	runtime *config.Runtime
	quota   QuotaService
	logger  *slog.Logger
	now     func() time.Time
}

// NewProfileHandler creates a ProfileHandler with the provided dependencies.
func NewProfileHandler(rt *config.Runtime, q QuotaService, logger *slog.Logger, now func() time.Time) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ProfileHandler{runtime: rt, quota: q, logger: logger, now: now}
}

// RegisterRoutes mounts the profile endpoints.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/entitlements", h.HandleGetEntitlements)
}

// HandleGetEntitlements returns the caller's full standing. The account
// was loaded by the entitlement gate; nothing is re-fetched here.
func (h *ProfileHandler) HandleGetEntitlements(w http.ResponseWriter, r *http.Request) {
	account, ok := types.GetAccount(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "session required", nil))
		return
	}

	standing, err := buildStanding(r.Context(), h.runtime, h.quota, account, h.now())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build standing",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data:     standing,
		Warnings: standing.Diagnostics,
	})
}
