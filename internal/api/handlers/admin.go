package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// AdminAccountRepo is the account repository subset the administrative
// surface needs.
type AdminAccountRepo interface {
	GetByID(ctx context.Context, id string) (types.Account, error)
	UpdateEntitlements(ctx context.Context, a types.Account) error
}

// AdminHandler implements the operator surface for entitlement state. It
// persists raw inputs only: tier and merged benefits are derived views,
// returned for preview but never stored, so an operator change takes
// effect on the very next request.
type AdminHandler struct {
	runtime  *config.Runtime
	accounts AdminAccountRepo
	quota    QuotaService
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminHandler creates an AdminHandler with the provided dependencies.
func NewAdminHandler(
	rt *config.Runtime,
	accounts AdminAccountRepo,
	q QuotaService,
	logger *slog.Logger,
	now func() time.Time,
) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{
		runtime:  rt,
		accounts: accounts,
		quota:    q,
		validate: validator.New(),
		logger:   logger,
		now:      now,
	}
}

// RegisterRoutes mounts the administrative endpoints. The caller is
// responsible for wrapping the router with the admin requirement.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/", h.HandleGetAccount)
		r.Patch("/", h.HandleUpdateAccount)
		r.Post("/quota/reset", h.HandleQuotaReset)
	})
}

// adminAccountView pairs the raw persisted inputs with the derived
// standing so an operator sees both what is stored and what it means.
type adminAccountView struct {
	Account  types.Account  `json:"account"`
	Standing types.Standing `json:"standing"`
}

// HandleGetAccount returns the raw account record plus a derived preview.
func (h *AdminHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	standing, err := buildStanding(r.Context(), h.runtime, h.quota, account, h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data:     adminAccountView{Account: account, Standing: standing},
		Warnings: standing.Diagnostics,
	})
}

// updateAccountRequest carries the operator-editable entitlement fields.
// Absent fields keep their stored value; the Clear flags express an
// explicit reset, which a pointer alone cannot distinguish from absence.
type updateAccountRequest struct {
	StoredValueCents *int64 `json:"stored_value_cents" validate:"omitempty,min=0"`
	ClearStoredValue bool   `json:"clear_stored_value"`

	ExplicitVIP *bool `json:"explicit_vip"`

	// ExpiresAt is a YYYY-MM-DD date literal interpreted in the quota
	// reference timezone.
	ExpiresAt       *string `json:"expires_at"`
	ClearExpiration bool    `json:"clear_expiration"`

	// AddonFlags and BenefitOverrides replace the stored document whole
	// when present. Overrides are persisted raw; malformed fields are
	// dropped at merge time with diagnostics, never rejected here.
	AddonFlags       *types.AddonFlags       `json:"addon_flags"`
	BenefitOverrides *types.BenefitOverrides `json:"benefit_overrides"`
}

// HandleUpdateAccount persists raw entitlement inputs and responds with
// the derived preview, including merge diagnostics for any override
// fields that will be ignored.
func (h *AdminHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req updateAccountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidValue, "invalid update request", err))
		return
	}

	if req.ClearStoredValue {
		account.StoredValueCents = nil
	} else if req.StoredValueCents != nil {
		account.StoredValueCents = req.StoredValueCents
	}

	if req.ExplicitVIP != nil {
		account.ExplicitVIP = *req.ExplicitVIP
	}

	if req.ClearExpiration {
		account.ExpiresAt = nil
	} else if req.ExpiresAt != nil {
		expires, err := h.runtime.Windows.ParseLocalDate(*req.ExpiresAt)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		account.ExpiresAt = &expires
	}

	if req.AddonFlags != nil {
		for addon := range *req.AddonFlags {
			if !addon.Valid() {
				core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidAddon,
					"unknown add-on: "+string(addon), nil))
				return
			}
		}
		account.AddonFlags = *req.AddonFlags
	}

	if req.BenefitOverrides != nil {
		account.BenefitOverrides = req.BenefitOverrides
	}

	if err := h.accounts.UpdateEntitlements(r.Context(), account); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account entitlements updated by administrator",
		slog.String("account_id", account.ID),
	)

	standing, err := buildStanding(r.Context(), h.runtime, h.quota, account, h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data:     adminAccountView{Account: account, Standing: standing},
		Warnings: standing.Diagnostics,
	})
}

// quotaResetRequest names the counter to zero.
type quotaResetRequest struct {
	Counter types.CounterName `json:"counter" validate:"required"`
}

// HandleQuotaReset zeroes one counter by administrative action, the only
// permitted decrement outside a window rollover.
func (h *AdminHandler) HandleQuotaReset(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		core.Error(w, r, err)
		return
	}

	var req quotaResetRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if !validCounter(req.Counter) {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidValue,
			"unknown counter: "+string(req.Counter), nil))
		return
	}

	if err := h.quota.Reset(r.Context(), accountID, req.Counter, h.now()); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "quota counter reset by administrator",
		slog.String("account_id", accountID),
		slog.String("counter", string(req.Counter)),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"account_id": accountID,
		"counter":    string(req.Counter),
		"status":     "reset",
	}})
}

func validCounter(name types.CounterName) bool {
	for _, c := range types.AllCounters {
		if c == name {
			return true
		}
	}
	return false
}
