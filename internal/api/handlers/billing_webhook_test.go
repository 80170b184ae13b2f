package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// fakeVerifier accepts or rejects every payload.
type fakeVerifier struct {
	Err error

	mu      sync.Mutex
	Headers []string
}

func (f *fakeVerifier) Verify(payload []byte, header string, secret string) error {
	f.mu.Lock()
	f.Headers = append(f.Headers, header)
	f.mu.Unlock()
	return f.Err
}

// billingCall records one ApplyBillingEvent invocation.
type billingCall struct {
	AccountID  string
	ValueCents *int64
	ExpiresAt  *time.Time
	EventAt    time.Time
}

// expiryCall records one ApplyBillingExpiry invocation.
type expiryCall struct {
	AccountID string
	ExpiresAt time.Time
	EventAt   time.Time
}

type mockBillingApplier struct {
	Err error

	mu          sync.Mutex
	Calls       []billingCall
	ExpiryCalls []expiryCall
}

func (m *mockBillingApplier) ApplyBillingEvent(ctx context.Context, accountID string, valueCents *int64, expiresAt *time.Time, eventAt time.Time) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, billingCall{
		AccountID:  accountID,
		ValueCents: valueCents,
		ExpiresAt:  expiresAt,
		EventAt:    eventAt,
	})
	m.mu.Unlock()
	return m.Err
}

func (m *mockBillingApplier) ApplyBillingExpiry(ctx context.Context, accountID string, expiresAt, eventAt time.Time) error {
	m.mu.Lock()
	m.ExpiryCalls = append(m.ExpiryCalls, expiryCall{
		AccountID: accountID,
		ExpiresAt: expiresAt,
		EventAt:   eventAt,
	})
	m.mu.Unlock()
	return m.Err
}

func newWebhookFixture(t *testing.T) (chi.Router, *fakeVerifier, *mockBillingApplier) {
	t.Helper()
	verifier := &fakeVerifier{}
	applier := &mockBillingApplier{}
	h := NewBillingWebhookHandler(verifier, applier, "whsec_test", testLogger())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, verifier, applier
}

func postWebhook(r chi.Router, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	r, verifier, applier := newWebhookFixture(t)

	rec := postWebhook(r, `{"id":"evt_1","type":"checkout.session.completed"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, verifier.Headers)
	assert.Empty(t, applier.Calls)
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	r, verifier, applier := newWebhookFixture(t)
	verifier.Err = errors.New("signature mismatch")

	rec := postWebhook(r, `{"id":"evt_1","type":"checkout.session.completed"}`, "t=1,v1=bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthSessionInvalid), decodeError(t, rec).Code)
	assert.Empty(t, applier.Calls)

	// The raw header must reach the verifier untouched.
	require.Len(t, verifier.Headers, 1)
	assert.Equal(t, "t=1,v1=bad", verifier.Headers[0])
}

func TestWebhookMalformedJSONRejected(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	rec := postWebhook(r, `{not json`, "t=1,v1=ok")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.Calls)
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1770000000,
		"data": {"object": {
			"client_reference_id": "acct-1",
			"amount_total": 4200,
			"current_period_end": 1772600000
		}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, applier.Calls, 1)
	call := applier.Calls[0]
	assert.Equal(t, "acct-1", call.AccountID)
	require.NotNil(t, call.ValueCents)
	assert.Equal(t, int64(4200), *call.ValueCents)
	require.NotNil(t, call.ExpiresAt)
	assert.Equal(t, time.Unix(1772600000, 0).UTC(), *call.ExpiresAt)
	assert.Equal(t, time.Unix(1770000000, 0).UTC(), call.EventAt)
}

func TestWebhookAccountIDFromMetadata(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"created": 1770000000,
		"data": {"object": {
			"metadata": {"account_id": "acct-2"},
			"amount_total": 6000
		}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, applier.Calls, 1)
	assert.Equal(t, "acct-2", applier.Calls[0].AccountID)
	assert.Nil(t, applier.Calls[0].ExpiresAt)
}

func TestWebhookSubscriptionDeletedClearsValue(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"created": 1770000000,
		"data": {"object": {"metadata": {"account_id": "acct-1"}}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, applier.Calls, 1)
	assert.Nil(t, applier.Calls[0].ValueCents)
	assert.Nil(t, applier.Calls[0].ExpiresAt)
}

func TestWebhookPaymentFailedExpiresEntitlement(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_4",
		"type": "invoice.payment_failed",
		"created": 1770000000,
		"data": {"object": {"metadata": {"account_id": "acct-1"}}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	// Only the expiry moves; the stored value survives so a later
	// successful payment restores the tier.
	assert.Empty(t, applier.Calls)
	require.Len(t, applier.ExpiryCalls, 1)
	call := applier.ExpiryCalls[0]
	assert.Equal(t, "acct-1", call.AccountID)
	assert.Equal(t, call.EventAt, call.ExpiresAt)
}

func TestWebhookUpdateWithoutAmountKeepsStoredValue(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	// A renewal event that carries only the new period end must not
	// zero the stored value; it moves the expiry alone.
	body := `{
		"id": "evt_8",
		"type": "customer.subscription.updated",
		"created": 1770000000,
		"data": {"object": {
			"metadata": {"account_id": "acct-1"},
			"current_period_end": 1772600000
		}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, applier.Calls)
	require.Len(t, applier.ExpiryCalls, 1)
	assert.Equal(t, time.Unix(1772600000, 0).UTC(), applier.ExpiryCalls[0].ExpiresAt)
}

func TestWebhookUpdateWithoutBillingFieldsIsNoOp(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_9",
		"type": "customer.subscription.updated",
		"created": 1770000000,
		"data": {"object": {"metadata": {"account_id": "acct-1"}}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, applier.Calls)
	assert.Empty(t, applier.ExpiryCalls)
}

func TestWebhookExplicitZeroAmountOverwrites(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	body := `{
		"id": "evt_10",
		"type": "customer.subscription.updated",
		"created": 1770000000,
		"data": {"object": {
			"metadata": {"account_id": "acct-1"},
			"amount_total": 0
		}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, applier.Calls, 1)
	require.NotNil(t, applier.Calls[0].ValueCents)
	assert.Equal(t, int64(0), *applier.Calls[0].ValueCents)
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	rec := postWebhook(r, `{"id":"evt_5","type":"charge.refunded","data":{"object":{}}}`, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, applier.Calls)
}

func TestWebhookMissingAccountStillAcknowledged(t *testing.T) {
	r, _, applier := newWebhookFixture(t)

	// No account reference anywhere: processing fails internally, but the
	// endpoint acknowledges so the provider does not retry forever.
	rec := postWebhook(r, `{"id":"evt_6","type":"checkout.session.completed","data":{"object":{}}}`, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, applier.Calls)
}

func TestWebhookProcessingErrorStillAcknowledged(t *testing.T) {
	r, _, applier := newWebhookFixture(t)
	applier.Err = errors.New("db down")

	body := `{
		"id": "evt_7",
		"type": "customer.subscription.deleted",
		"created": 1770000000,
		"data": {"object": {"metadata": {"account_id": "acct-1"}}}
	}`
	rec := postWebhook(r, body, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, rec.Code)
}
