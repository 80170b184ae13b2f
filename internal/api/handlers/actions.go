package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// ActionHandler implements the rate-limited action endpoints. Access was
// already granted by the entitlement gate; this layer only enforces quota
// consumption, which is a different concern: being allowed to download
// does not mean being in quota.
type ActionHandler struct {
	runtime *config.Runtime
	quota   QuotaService
	logger  *slog.Logger
	now     func() time.Time
}

// NewActionHandler creates an ActionHandler with the provided dependencies.
func NewActionHandler(rt *config.Runtime, q QuotaService, logger *slog.Logger, now func() time.Time) *ActionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ActionHandler{runtime: rt, quota: q, logger: logger, now: now}
}

// RegisterRoutes mounts the action endpoints.
func (h *ActionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/downloads", h.consume(types.BenefitDailyDownloads))
	r.Post("/pack-requests", h.consume(types.BenefitPackRequests))
	r.Post("/playlist-exports", h.consume(types.BenefitPlaylistExports))
}

// actionResult is the success payload for a consumed slot.
type actionResult struct {
	Counter   types.CounterName `json:"counter"`
	Remaining *int              `json:"remaining"`
	ResetsAt  time.Time         `json:"resets_at"`
}

// consume builds the handler for one benefit-backed action. The flow is
// merge-then-consume: the effective limit comes from the benefit merge
// (tier defaults overlaid with the account's overrides), and the claim is
// a single atomic check-and-increment on the backing counter.
func (h *ActionHandler) consume(name types.BenefitName) http.HandlerFunc {
	counter := name.Counter()

	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := types.GetAccount(r.Context())
		if !ok {
			core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "session required", nil))
			return
		}

		now := h.now()
		benefit := effectiveLimit(h.runtime, account, name, now)

		if !benefit.Enabled {
			// A disabled benefit consumes nothing and exposes no quota
			// headers; it reads as a permanently exhausted quota.
			core.Error(w, r, types.NewAppError(types.ErrCodeLimitQuota, "benefit not enabled", nil).
				WithDetails(map[string]any{"reason": string(types.DenyReasonQuota)}))
			return
		}

		res, err := h.quota.TryConsume(r.Context(), account.ID, counter, benefit.Limit, now)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "quota consumption failed",
				slog.String("account_id", account.ID),
				slog.String("counter", string(counter)),
				slog.String("error", err.Error()),
			)
			core.Error(w, r, err)
			return
		}

		setQuotaHeaders(w, benefit.Limit, res)

		if !res.Allowed {
			core.Error(w, r, types.NewAppError(types.ErrCodeLimitQuota, "quota exhausted", nil).
				WithDetails(map[string]any{
					"reason":    string(res.Reason),
					"resets_at": res.ResetsAt.Format(time.RFC3339),
				}))
			return
		}

		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: actionResult{
			Counter:   counter,
			Remaining: res.Remaining,
			ResetsAt:  res.ResetsAt,
		}})
	}
}

// setQuotaHeaders writes the standard X-Quota-* headers. An unlimited
// benefit reports no limit or remaining header, only the reset time.
func setQuotaHeaders(w http.ResponseWriter, limit *int, res quota.Result) {
	if limit != nil {
		w.Header().Set("X-Quota-Limit", strconv.Itoa(*limit))
	}
	if res.Remaining != nil {
		w.Header().Set("X-Quota-Remaining", strconv.Itoa(*res.Remaining))
	}
	w.Header().Set("X-Quota-Reset", strconv.FormatInt(res.ResetsAt.Unix(), 10))
}
