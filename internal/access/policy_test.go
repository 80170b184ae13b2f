package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/entitlement"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

var testNow = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

func cents(v int64) *int64 { return &v }

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	r, err := entitlement.NewResolver(entitlement.DefaultThresholds, nil)
	require.NoError(t, err)
	p, err := NewPolicy(r, DefaultProtectedPaths)
	require.NoError(t, err)
	return p
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		literal string
		want    Class
		wantErr bool
	}{
		{literal: "tier", want: Class{Tier: true}},
		{literal: "addon:uploader", want: Class{Addon: types.AddonUploader}},
		{literal: "addon:extraction", want: Class{Addon: types.AddonExtraction}},
		{literal: "addon:jetpack", wantErr: true},
		{literal: "admin", wantErr: true},
		{literal: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := ParseClass(tt.literal)
			if tt.wantErr {
				var appErr *types.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, types.ErrCodeConfigInvalid, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPolicyRejectsBadConfig(t *testing.T) {
	r, err := entitlement.NewResolver(entitlement.DefaultThresholds, nil)
	require.NoError(t, err)

	_, err = NewPolicy(r, map[string][]string{"/downloads": {"vip"}})
	assert.Error(t, err)

	_, err = NewPolicy(r, map[string][]string{"downloads": {"tier"}})
	assert.Error(t, err)
}

func TestDecideUnprotectedPath(t *testing.T) {
	p := newTestPolicy(t)
	d := p.Decide(types.Account{}, "/v1/me/entitlements", testNow)
	assert.True(t, d.Allowed)
}

func TestDecideAdminBypassesEverything(t *testing.T) {
	p := newTestPolicy(t)
	admin := types.Account{IsAdmin: true}

	for path := range DefaultProtectedPaths {
		d := p.Decide(admin, path, testNow)
		assert.True(t, d.Allowed, path)
	}
}

func TestDecideTierGated(t *testing.T) {
	p := newTestPolicy(t)

	qualifying := types.Account{StoredValueCents: cents(4200)}
	assert.True(t, p.Decide(qualifying, "/downloads", testNow).Allowed)
	assert.True(t, p.Decide(qualifying, "/downloads/track/99", testNow).Allowed)

	broke := types.Account{}
	d := p.Decide(broke, "/downloads", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReasonTier, d.Reason)
}

func TestDecideExpiredAccountDeniedWithTierReason(t *testing.T) {
	p := newTestPolicy(t)
	yesterday := testNow.AddDate(0, 0, -1)
	a := types.Account{StoredValueCents: cents(3800), ExpiresAt: &yesterday}

	d := p.Decide(a, "/pack-requests", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReasonTier, d.Reason)
}

func TestDecideVIPSatisfiesTierGate(t *testing.T) {
	p := newTestPolicy(t)
	a := types.Account{ExplicitVIP: true}

	assert.True(t, p.Decide(a, "/downloads", testNow).Allowed)
}

func TestDecideAddonIndependentOfTier(t *testing.T) {
	p := newTestPolicy(t)

	// Uploader add-on, no tier: the upload surface opens, the tier-gated
	// surfaces stay shut.
	a := types.Account{AddonFlags: types.AddonFlags{types.AddonUploader: true}}

	assert.True(t, p.Decide(a, "/uploads", testNow).Allowed)

	d := p.Decide(a, "/downloads", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReasonTier, d.Reason)
}

func TestDecideMissingAddonDeniedWithAddonReason(t *testing.T) {
	p := newTestPolicy(t)
	a := types.Account{StoredValueCents: cents(6000)}

	d := p.Decide(a, "/streaming", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReason("addon:streaming"), d.Reason)
}

func TestDecideAllClassesMustPass(t *testing.T) {
	r, err := entitlement.NewResolver(entitlement.DefaultThresholds, nil)
	require.NoError(t, err)
	p, err := NewPolicy(r, map[string][]string{
		"/premium-extraction": {"tier", "addon:extraction"},
	})
	require.NoError(t, err)

	tierOnly := types.Account{StoredValueCents: cents(6000)}
	d := p.Decide(tierOnly, "/premium-extraction", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReason("addon:extraction"), d.Reason)

	both := types.Account{
		StoredValueCents: cents(6000),
		AddonFlags:       types.AddonFlags{types.AddonExtraction: true},
	}
	assert.True(t, p.Decide(both, "/premium-extraction", testNow).Allowed)
}

func TestDecideLongestPrefixWins(t *testing.T) {
	r, err := entitlement.NewResolver(entitlement.DefaultThresholds, nil)
	require.NoError(t, err)
	p, err := NewPolicy(r, map[string][]string{
		"/media":           {"tier"},
		"/media/streaming": {"addon:streaming"},
	})
	require.NoError(t, err)

	a := types.Account{AddonFlags: types.AddonFlags{types.AddonStreaming: true}}
	assert.True(t, p.Decide(a, "/media/streaming/live", testNow).Allowed)

	d := p.Decide(a, "/media/library", testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.DenyReasonTier, d.Reason)
}

func TestDecidePrefixMatchIsSegmentAware(t *testing.T) {
	p := newTestPolicy(t)

	// "/downloadsomething" is not under "/downloads".
	assert.True(t, p.Decide(types.Account{}, "/downloadsomething", testNow).Allowed)
}
