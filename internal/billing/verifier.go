// Package billing holds the payment-provider integration surface: webhook
// signature verification and the event type constants the webhook handler
// routes on. Billing state itself lives on the account record; this package
// only guards and names the inbound events.
package billing

import (
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
)

// WebhookVerifier abstracts provider webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature
	// header and signing secret. Returns nil on success.
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification: HMAC-SHA256 with timestamp tolerance.
type StripeVerifier struct{}

func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

// StubVerifier accepts every payload. For local development only.
type StubVerifier struct {
	Logger *slog.Logger
}

func (s *StubVerifier) Verify(payload []byte, header string, secret string) error {
	if s.Logger != nil {
		s.Logger.Warn("stub webhook verifier accepted payload without checking signature")
	}
	return nil
}

// Stripe event type constants prevent magic strings in webhook handlers.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventSubUpdated        = "customer.subscription.updated"
	EventSubDeleted        = "customer.subscription.deleted"
	EventPaymentFailed     = "invoice.payment_failed"
)
