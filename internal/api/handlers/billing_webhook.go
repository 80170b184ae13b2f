// This file implements the payment-provider webhook endpoint. It is NOT
// behind the session middleware; security comes from verifying the
// Stripe-Signature header with HMAC-SHA256.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/billing"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// maxWebhookBodySize caps webhook payloads at 64 KB. Provider payloads are
// small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// BillingEventApplier records billing-status changes on an account. This is
// the subset of AccountRepository the webhook handler needs.
type BillingEventApplier interface {
	ApplyBillingEvent(
		ctx context.Context,
		accountID string,
		valueCents *int64,
		expiresAt *time.Time,
		eventAt time.Time,
	) error
	ApplyBillingExpiry(
		ctx context.Context,
		accountID string,
		expiresAt time.Time,
		eventAt time.Time,
	) error
}

// BillingWebhookHandler processes asynchronous events from the payment
// provider. Events carry our account ID in metadata; each one is applied
// as a raw stored-value and expiration update, never a tier.
type BillingWebhookHandler struct {
	verifier billing.WebhookVerifier
	accounts BillingEventApplier
	secret   string
	logger   *slog.Logger
}

// NewBillingWebhookHandler creates a BillingWebhookHandler with the provided
// dependencies.
func NewBillingWebhookHandler(
	verifier billing.WebhookVerifier,
	accounts BillingEventApplier,
	secret string,
	logger *slog.Logger,
) *BillingWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingWebhookHandler{
		verifier: verifier,
		accounts: accounts,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. Kept separate from the
// session-gated route registrars because this route is public.
func (h *BillingWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks", h.Handle)
}

// Handle processes an incoming webhook event: read, verify, parse, route,
// acknowledge. Internal processing failures are logged but still answered
// with 200 so the provider does not retry forever.
func (h *BillingWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSessionMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSessionInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event billingWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing billing webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		// Return 200 anyway; the provider would otherwise retry forever.
		// The error is logged for investigation.
	}

	w.WriteHeader(http.StatusOK)
}

func (h *BillingWebhookHandler) routeEvent(ctx context.Context, event *billingWebhookEvent) error {
	switch event.Type {
	case billing.EventCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)

	case billing.EventSubUpdated:
		return h.handleSubscriptionUpdated(ctx, event)

	case billing.EventSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)

	case billing.EventPaymentFailed:
		return h.handlePaymentFailed(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted records a completed purchase: the amount paid
// becomes the stored value the tier resolver reads.
func (h *BillingWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *billingWebhookEvent) error {
	h.logger.InfoContext(ctx, "processing checkout completed",
		"event_id", event.ID,
	)
	return h.applyPaymentEvent(ctx, event)
}

// handleSubscriptionUpdated refreshes the stored value and period end after
// an upgrade, downgrade or renewal.
func (h *BillingWebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *billingWebhookEvent) error {
	h.logger.InfoContext(ctx, "processing subscription updated",
		"event_id", event.ID,
	)
	return h.applyPaymentEvent(ctx, event)
}

// applyPaymentEvent writes whatever billing fields the event carries. An
// event without an amount must not overwrite the stored value with zero;
// it only moves the expiry, and an event with neither field is a no-op.
func (h *BillingWebhookHandler) applyPaymentEvent(ctx context.Context, event *billingWebhookEvent) error {
	accountID := event.extractAccountID()
	if accountID == "" {
		return fmt.Errorf("%s: missing account_id in event %s", event.Type, event.ID)
	}

	value := event.extractAmount()
	expires := event.extractPeriodEnd()

	if value != nil {
		return h.accounts.ApplyBillingEvent(ctx, accountID, value, expires, event.eventTimestamp())
	}
	if expires != nil {
		return h.accounts.ApplyBillingExpiry(ctx, accountID, *expires, event.eventTimestamp())
	}

	h.logger.InfoContext(ctx, "billing event carried no billing fields; ignored",
		"event_id", event.ID,
		"account_id", accountID,
	)
	return nil
}

// handleSubscriptionDeleted clears the stored value. The account resolves
// to no tier on its next request unless it is an explicit VIP.
func (h *BillingWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *billingWebhookEvent) error {
	accountID := event.extractAccountID()
	if accountID == "" {
		return fmt.Errorf("%s: missing account_id in event %s", event.Type, event.ID)
	}

	h.logger.InfoContext(ctx, "processing subscription deleted",
		"event_id", event.ID,
		"account_id", accountID,
	)

	return h.accounts.ApplyBillingEvent(ctx, accountID, nil, nil, event.eventTimestamp())
}

// handlePaymentFailed expires the entitlement at the event time. The
// stored value stays put so a later successful payment restores the tier
// without replaying history.
func (h *BillingWebhookHandler) handlePaymentFailed(ctx context.Context, event *billingWebhookEvent) error {
	accountID := event.extractAccountID()
	if accountID == "" {
		return fmt.Errorf("%s: missing account_id in event %s", event.Type, event.ID)
	}

	eventTime := event.eventTimestamp()

	h.logger.WarnContext(ctx, "processing payment failure",
		"event_id", event.ID,
		"account_id", accountID,
	)

	return h.accounts.ApplyBillingExpiry(ctx, accountID, eventTime, eventTime)
}

// billingWebhookEvent is a minimal representation of a provider webhook
// event, tailored to the fields needed for routing and processing. We avoid
// the full stripe.Event type to keep the handler decoupled from the library
// and testing straightforward.
type billingWebhookEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"`
	Data    billingEventData `json:"data"`
}

type billingEventData struct {
	Object billingEventObject `json:"object"`
}

// billingEventObject covers the fields we read from checkout sessions and
// subscription objects alike. AmountTotal is a pointer: absent and zero
// must stay distinguishable, because an absent amount keeps the stored
// value while an explicit zero overwrites it.
type billingEventObject struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	AmountTotal       *int64            `json:"amount_total"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
}

func (e *billingWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// extractAccountID prefers client_reference_id, which our checkout flow
// sets, then falls back to metadata.
func (e *billingWebhookEvent) extractAccountID() string {
	if e.Data.Object.ClientReferenceID != "" {
		return e.Data.Object.ClientReferenceID
	}
	return e.Data.Object.Metadata["account_id"]
}

func (e *billingWebhookEvent) extractAmount() *int64 {
	return e.Data.Object.AmountTotal
}

func (e *billingWebhookEvent) extractPeriodEnd() *time.Time {
	if e.Data.Object.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(e.Data.Object.CurrentPeriodEnd, 0).UTC()
	return &t
}
