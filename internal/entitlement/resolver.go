// Package entitlement provides the pure derivation logic for the platform:
// tier resolution from payment state, add-on activity and pricing, and the
// merge of per-account overrides onto tier benefit defaults. Nothing in this
// package performs I/O; every function is deterministic given its inputs,
// including the caller-supplied clock value.
package entitlement

import (
	"fmt"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// Thresholds holds the monetary cut-offs for tier resolution, in cents.
// Each bound is inclusive: a stored value exactly equal to a threshold
// resolves to the tier at that threshold.
type Thresholds struct {
	BasicCents    int64 `json:"basic"`
	StandardCents int64 `json:"standard"`
	FullCents     int64 `json:"full"`
}

// DefaultThresholds are the production cut-offs (R$35 / R$42 / R$60).
var DefaultThresholds = Thresholds{
	BasicCents:    3500,
	StandardCents: 4200,
	FullCents:     6000,
}

// Validate rejects misconfigured thresholds. The thresholds must be
// positive and strictly increasing; anything else would produce silently
// wrong tier decisions, so the engine refuses to initialize.
func (t Thresholds) Validate() error {
	if t.BasicCents <= 0 {
		return types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("basic threshold must be positive, got %d", t.BasicCents), nil)
	}
	if t.BasicCents >= t.StandardCents || t.StandardCents >= t.FullCents {
		return types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("tier thresholds must be strictly increasing, got basic=%d standard=%d full=%d",
				t.BasicCents, t.StandardCents, t.FullCents), nil)
	}
	return nil
}

// PinnedTiers maps an exact stored value (cents) to a fixed tier, applied
// before the general threshold rule. Historical special cases belong here
// as deliberate configuration instead of inline branches. Empty by default.
type PinnedTiers map[int64]types.Tier

// Validate rejects pinned entries that name an unknown tier.
func (p PinnedTiers) Validate() error {
	for cents, tier := range p {
		if !tier.Valid() {
			return types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("pinned value %d maps to unknown tier %q", cents, tier), nil)
		}
	}
	return nil
}

// Resolver derives tiers from payment state. It is a value type: construct
// once at startup from validated configuration and share freely.
type Resolver struct {
	Thresholds Thresholds
	Pinned     PinnedTiers
}

// NewResolver validates the configuration and returns a Resolver.
func NewResolver(thresholds Thresholds, pinned PinnedTiers) (Resolver, error) {
	if err := thresholds.Validate(); err != nil {
		return Resolver{}, err
	}
	if err := pinned.Validate(); err != nil {
		return Resolver{}, err
	}
	return Resolver{Thresholds: thresholds, Pinned: pinned}, nil
}

// ResolveTier maps a stored monetary value and its flags to a tier.
//
// An expiration date in the past voids the payment record and yields
// TierNone, unless the explicit VIP flag is set: an explicit grant
// overrides an expired record, and resolution proceeds on the stored value.
// Pinned exact values are consulted before the general threshold rule.
// Threshold bounds are inclusive.
//
// The clock is always passed in, never read globally.
func (r Resolver) ResolveTier(valueCents *int64, explicitVIP bool, expiresAt *time.Time, now time.Time) types.Tier {
	if expiresAt != nil && expiresAt.Before(now) && !explicitVIP {
		return types.TierNone
	}
	if valueCents == nil {
		return types.TierNone
	}
	if tier, ok := r.Pinned[*valueCents]; ok {
		return tier
	}
	switch v := *valueCents; {
	case v >= r.Thresholds.FullCents:
		return types.TierFull
	case v >= r.Thresholds.StandardCents:
		return types.TierStandard
	case v >= r.Thresholds.BasicCents:
		return types.TierBasic
	default:
		return types.TierNone
	}
}

// ResolveAccount derives the tier for a full account record.
func (r Resolver) ResolveAccount(a types.Account, now time.Time) types.Tier {
	return r.ResolveTier(a.StoredValueCents, a.ExplicitVIP, a.ExpiresAt, now)
}
