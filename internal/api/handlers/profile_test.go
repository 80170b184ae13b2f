package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

func newProfileRouter(t *testing.T, q QuotaService) chi.Router {
	t.Helper()
	rt := newTestRuntime(t)
	h := NewProfileHandler(rt, q, testLogger(), func() time.Time { return testNow })
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestGetEntitlementsStandardTier(t *testing.T) {
	rt := newTestRuntime(t)
	tracker, _ := newTestTracker(t, rt)
	r := newProfileRouter(t, tracker)

	account := types.Account{
		ID:               "acct-1",
		StoredValueCents: cents(4200),
		AddonFlags:       types.AddonFlags{types.AddonStreaming: true},
	}

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := serveWithAccount(r, req, account)
	require.Equal(t, http.StatusOK, rec.Code)

	var standing types.Standing
	warnings := decodeData(t, rec, &standing)
	assert.Empty(t, warnings)

	assert.Equal(t, "acct-1", standing.AccountID)
	assert.Equal(t, types.TierStandard, standing.Tier)
	assert.True(t, standing.Benefits.StreamingEnabled)
	assert.False(t, standing.Benefits.ExtractionEnabled)

	// Streaming at standard tier: 975 cents with a 20% discount.
	require.Len(t, standing.Addons, 1)
	assert.Equal(t, types.AddonStreaming, standing.Addons[0].Addon)
	assert.Equal(t, int64(780), standing.Addons[0].MonthlyCostCents)

	downloads := standing.Benefits.Benefits[types.BenefitDailyDownloads]
	require.NotNil(t, downloads.Limit)
	assert.Equal(t, 100, *downloads.Limit)
	assert.Equal(t, 0, downloads.Used)
	require.NotNil(t, downloads.ResetsAt)
	assert.True(t, downloads.ResetsAt.After(testNow))
}

func TestGetEntitlementsReflectsLiveUsage(t *testing.T) {
	rt := newTestRuntime(t)
	tracker, _ := newTestTracker(t, rt)
	r := newProfileRouter(t, tracker)

	account := types.Account{ID: "acct-1", StoredValueCents: cents(3500)}

	_, err := tracker.TryConsume(context.Background(), "acct-1", types.CounterDailyDownloads, intPtr(50), testNow)
	require.NoError(t, err)
	_, err = tracker.TryConsume(context.Background(), "acct-1", types.CounterDailyDownloads, intPtr(50), testNow)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := serveWithAccount(r, req, account)
	require.Equal(t, http.StatusOK, rec.Code)

	var standing types.Standing
	decodeData(t, rec, &standing)
	assert.Equal(t, types.TierBasic, standing.Tier)
	assert.Equal(t, 2, standing.Benefits.Benefits[types.BenefitDailyDownloads].Used)
}

func TestGetEntitlementsSurfacesOverrideDiagnostics(t *testing.T) {
	rt := newTestRuntime(t)
	tracker, _ := newTestTracker(t, rt)
	r := newProfileRouter(t, tracker)

	badLimit := -5.0
	account := types.Account{
		ID:               "acct-1",
		StoredValueCents: cents(6000),
		BenefitOverrides: &types.BenefitOverrides{
			string(types.BenefitPackRequests): {Limit: &badLimit},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := serveWithAccount(r, req, account)
	require.Equal(t, http.StatusOK, rec.Code)

	var standing types.Standing
	warnings := decodeData(t, rec, &standing)
	require.Len(t, warnings, 1)
	assert.Equal(t, string(types.BenefitPackRequests), warnings[0].Benefit)
	assert.Equal(t, "limit", warnings[0].Field)

	// The malformed limit was dropped; the full-tier default survives.
	require.NotNil(t, standing.Benefits.Benefits[types.BenefitPackRequests].Limit)
	assert.Equal(t, 10, *standing.Benefits.Benefits[types.BenefitPackRequests].Limit)
}

func TestGetEntitlementsWithoutAccountRejected(t *testing.T) {
	rt := newTestRuntime(t)
	tracker, _ := newTestTracker(t, rt)
	r := newProfileRouter(t, tracker)

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetEntitlementsSnapshotFailurePropagates(t *testing.T) {
	q := &mockQuota{
		SnapshotFunc: func(ctx context.Context, accountID string, now time.Time) (map[types.CounterName]quota.CounterView, error) {
			return nil, types.NewAppError(types.ErrCodeQuotaStore, "counter store unavailable", nil)
		},
	}
	r := newProfileRouter(t, q)

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := serveWithAccount(r, req, types.Account{ID: "acct-1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(types.ErrCodeQuotaStore), decodeError(t, rec).Code)
}
