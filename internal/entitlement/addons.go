package entitlement

import (
	"fmt"
	"math"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// PriceRule defines the pricing for one add-on: a base monthly price in
// cents and a per-tier discount fraction in [0, 1].
type PriceRule struct {
	BaseCents      int64                    `json:"base_cents"`
	DiscountByTier map[types.Tier]float64   `json:"discount_by_tier"`
}

// AddonPricing maps each add-on to its price rule.
type AddonPricing map[types.Addon]PriceRule

// DefaultPricing is the production add-on price table. The extraction
// service and premium streaming get cheaper on higher tiers; the uploader
// privilege is flat-priced.
var DefaultPricing = AddonPricing{
	types.AddonExtraction: {
		BaseCents: 3800,
		DiscountByTier: map[types.Tier]float64{
			types.TierBasic:    0.10,
			types.TierStandard: 0.25,
			types.TierFull:     0.50,
		},
	},
	types.AddonStreaming: {
		BaseCents: 975,
		DiscountByTier: map[types.Tier]float64{
			types.TierStandard: 0.20,
			types.TierFull:     1.00,
		},
	},
	types.AddonUploader: {
		BaseCents: 1000,
	},
}

// Validate rejects negative base prices, discounts outside [0, 1], and
// rules for unknown add-ons. Fatal at startup.
func (p AddonPricing) Validate() error {
	for addon, rule := range p {
		if !addon.Valid() {
			return types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("pricing configured for unknown add-on %q", addon), nil)
		}
		if rule.BaseCents < 0 {
			return types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("add-on %s has negative base price %d", addon, rule.BaseCents), nil)
		}
		for tier, discount := range rule.DiscountByTier {
			if discount < 0 || discount > 1 {
				return types.NewAppError(types.ErrCodeConfigInvalid,
					fmt.Sprintf("add-on %s discount for tier %s out of range: %f", addon, tier, discount), nil)
			}
		}
	}
	return nil
}

// ActiveAddons returns the add-ons enabled on the account, in stable
// order. Activity comes purely from the account's flags; tier never gates
// availability, only price.
func ActiveAddons(a types.Account) []types.Addon {
	var active []types.Addon
	for _, addon := range types.AllAddons {
		if a.AddonFlags.Has(addon) {
			active = append(active, addon)
		}
	}
	return active
}

// HasAddon reports whether the add-on is active on the account.
func HasAddon(a types.Account, addon types.Addon) bool {
	return a.AddonFlags.Has(addon)
}

// MonthlyCost returns the effective monthly price in cents for the add-on
// at the given tier: base * (1 - discount), rounded to the nearest cent
// and floored at zero. Unknown add-ons cost zero.
func (p AddonPricing) MonthlyCost(addon types.Addon, tier types.Tier) int64 {
	rule, ok := p[addon]
	if !ok {
		return 0
	}
	discount := rule.DiscountByTier[tier]
	cost := int64(math.Round(float64(rule.BaseCents) * (1 - discount)))
	if cost < 0 {
		return 0
	}
	return cost
}

// Charges pairs every active add-on with its effective monthly cost.
func (p AddonPricing) Charges(a types.Account, tier types.Tier) []types.AddonCharge {
	var charges []types.AddonCharge
	for _, addon := range ActiveAddons(a) {
		charges = append(charges, types.AddonCharge{
			Addon:            addon,
			MonthlyCostCents: p.MonthlyCost(addon, tier),
		})
	}
	return charges
}
