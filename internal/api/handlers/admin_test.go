package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

func newAdminFixture(t *testing.T) (chi.Router, *mockAccountStore, *mockQuota) {
	t.Helper()
	rt := newTestRuntime(t)
	accounts := &mockAccountStore{Accounts: map[string]types.Account{
		"acct-1": {ID: "acct-1", Email: "dj@example.com", StoredValueCents: cents(3500)},
	}}
	q := &mockQuota{}
	h := NewAdminHandler(rt, accounts, q, testLogger(), func() time.Time { return testNow })
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, accounts, q
}

func adminRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestAdminGetAccountReturnsRawAndPreview(t *testing.T) {
	r, _, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodGet, "/accounts/acct-1", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var view adminAccountView
	decodeData(t, rec, &view)
	assert.Equal(t, "acct-1", view.Account.ID)
	require.NotNil(t, view.Account.StoredValueCents)
	assert.Equal(t, int64(3500), *view.Account.StoredValueCents)
	assert.Equal(t, types.TierBasic, view.Standing.Tier)
}

func TestAdminGetUnknownAccount(t *testing.T) {
	r, _, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodGet, "/accounts/nope", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminPatchStoredValuePersistsRaw(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"stored_value_cents": 6000}`))
	require.Equal(t, http.StatusOK, rec.Code)

	// The raw value is what hits the store; the tier is only a preview.
	require.Len(t, accounts.Updated, 1)
	require.NotNil(t, accounts.Updated[0].StoredValueCents)
	assert.Equal(t, int64(6000), *accounts.Updated[0].StoredValueCents)

	var view adminAccountView
	decodeData(t, rec, &view)
	assert.Equal(t, types.TierFull, view.Standing.Tier)
	assert.Nil(t, view.Standing.Benefits.Benefits[types.BenefitDailyDownloads].Limit)
}

func TestAdminPatchClearStoredValue(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"clear_stored_value": true}`))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, accounts.Updated, 1)
	assert.Nil(t, accounts.Updated[0].StoredValueCents)

	var view adminAccountView
	decodeData(t, rec, &view)
	assert.Equal(t, types.TierNone, view.Standing.Tier)
}

func TestAdminPatchExpirationDateLiteral(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"expires_at": "2026-09-01"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, accounts.Updated, 1)
	expires := accounts.Updated[0].ExpiresAt
	require.NotNil(t, expires)

	// Date literals land at local midday in the reference timezone.
	local := expires.In(time.FixedZone("BRT", -3*60*60))
	assert.Equal(t, 2026, local.Year())
	assert.Equal(t, time.September, local.Month())
	assert.Equal(t, 1, local.Day())
	assert.Equal(t, 12, local.Hour())
}

func TestAdminPatchMalformedDateRejected(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"expires_at": "01/09/2026"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, accounts.Updated)
}

func TestAdminPatchOverridesPersistedRawWithDiagnostics(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"benefit_overrides": {"dailyDownloads": {"limit": -10}, "packRequests": {"limit": 7}}}`))
	require.Equal(t, http.StatusOK, rec.Code)

	// Malformed fields are persisted as-is; only the merge drops them,
	// and the response carries the diagnostic so the operator sees it.
	require.Len(t, accounts.Updated, 1)
	stored := accounts.Updated[0].BenefitOverrides
	require.NotNil(t, stored)
	require.NotNil(t, (*stored)[string(types.BenefitDailyDownloads)].Limit)
	assert.Equal(t, -10.0, *(*stored)[string(types.BenefitDailyDownloads)].Limit)

	var view adminAccountView
	warnings := decodeData(t, rec, &view)
	require.Len(t, warnings, 1)
	assert.Equal(t, string(types.BenefitDailyDownloads), warnings[0].Benefit)

	// The valid override took effect in the preview.
	require.NotNil(t, view.Standing.Benefits.Benefits[types.BenefitPackRequests].Limit)
	assert.Equal(t, 7, *view.Standing.Benefits.Benefits[types.BenefitPackRequests].Limit)
}

func TestAdminPatchUnknownAddonRejected(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"addon_flags": {"karaoke": true}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidAddon), decodeError(t, rec).Code)
	assert.Empty(t, accounts.Updated)
}

func TestAdminPatchNegativeValueRejected(t *testing.T) {
	r, accounts, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"stored_value_cents": -100}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, accounts.Updated)
}

func TestAdminPatchUnknownFieldRejected(t *testing.T) {
	r, _, _ := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPatch, "/accounts/acct-1",
		`{"tier": "full"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), decodeError(t, rec).Code)
}

func TestAdminQuotaReset(t *testing.T) {
	r, _, q := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/acct-1/quota/reset",
		`{"counter": "daily_downloads"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, q.ResetCalls, 1)
	assert.Equal(t, types.CounterDailyDownloads, q.ResetCalls[0])
}

func TestAdminQuotaResetUnknownCounter(t *testing.T) {
	r, _, q := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/acct-1/quota/reset",
		`{"counter": "monthly_remixes"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, q.ResetCalls)
}

func TestAdminQuotaResetUnknownAccount(t *testing.T) {
	r, _, q := newAdminFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/nope/quota/reset",
		`{"counter": "daily_downloads"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, q.ResetCalls)
}
