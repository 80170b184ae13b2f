package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/access"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/entitlement"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// Runtime holds the validated rule engines built from configuration. It
// is assembled once at startup; construction fails on any semantically
// invalid table rather than letting the engine make wrong decisions.
type Runtime struct {
	Resolver entitlement.Resolver
	Pricing  entitlement.AddonPricing
	Benefits entitlement.BenefitTable
	Windows  *quota.Windows
	Policy   *access.Policy
}

// BuildRuntime parses the JSON rule tables from cfg and constructs the
// rule engines. Empty tables fall back to the compiled-in defaults.
func BuildRuntime(cfg *Config) (*Runtime, error) {
	thresholds := entitlement.DefaultThresholds
	if cfg.Entitlement.ThresholdsJSON != "" {
		if err := json.Unmarshal([]byte(cfg.Entitlement.ThresholdsJSON), &thresholds); err != nil {
			return nil, &ConfigError{Type: ErrParsing, Message: "TIER_THRESHOLDS_JSON", Err: err}
		}
	}

	pinned, err := parsePinnedValues(cfg.Entitlement.PinnedValuesJSON)
	if err != nil {
		return nil, err
	}

	resolver, err := entitlement.NewResolver(thresholds, pinned)
	if err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "tier resolution rules", Err: err}
	}

	pricing := entitlement.DefaultPricing
	if cfg.Entitlement.PricingJSON != "" {
		pricing = entitlement.AddonPricing{}
		if err := json.Unmarshal([]byte(cfg.Entitlement.PricingJSON), &pricing); err != nil {
			return nil, &ConfigError{Type: ErrParsing, Message: "ADDON_PRICING_JSON", Err: err}
		}
	}
	if err := pricing.Validate(); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "add-on pricing", Err: err}
	}

	benefits := entitlement.DefaultBenefits
	if cfg.Entitlement.BenefitsJSON != "" {
		benefits = entitlement.BenefitTable{}
		if err := json.Unmarshal([]byte(cfg.Entitlement.BenefitsJSON), &benefits); err != nil {
			return nil, &ConfigError{Type: ErrParsing, Message: "BENEFIT_DEFAULTS_JSON", Err: err}
		}
	}
	if err := benefits.Validate(); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "benefit defaults", Err: err}
	}

	windows, err := quota.NewWindows(cfg.Quota.Timezone, quota.Anchor{
		Weekday: time.Weekday(cfg.Quota.WeeklyResetWeekday),
		Hour:    cfg.Quota.WeeklyResetHour,
	})
	if err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "quota windows", Err: err}
	}

	paths := access.DefaultProtectedPaths
	if cfg.Entitlement.ProtectedPathsJSON != "" {
		paths = map[string][]string{}
		if err := json.Unmarshal([]byte(cfg.Entitlement.ProtectedPathsJSON), &paths); err != nil {
			return nil, &ConfigError{Type: ErrParsing, Message: "PROTECTED_PATHS_JSON", Err: err}
		}
	}
	policy, err := access.NewPolicy(resolver, paths)
	if err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "protected paths", Err: err}
	}

	return &Runtime{
		Resolver: resolver,
		Pricing:  pricing,
		Benefits: benefits,
		Windows:  windows,
		Policy:   policy,
	}, nil
}

// parsePinnedValues decodes {"<cents>": "<tier>"} into a PinnedTiers map.
// JSON object keys are strings, so the cent values arrive as decimal
// literals and are parsed here.
func parsePinnedValues(raw string) (entitlement.PinnedTiers, error) {
	if raw == "" {
		return nil, nil
	}
	var byLiteral map[string]types.Tier
	if err := json.Unmarshal([]byte(raw), &byLiteral); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "TIER_PINNED_VALUES_JSON", Err: err}
	}
	pinned := make(entitlement.PinnedTiers, len(byLiteral))
	for literal, tier := range byLiteral {
		cents, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return nil, &ConfigError{
				Type:    ErrParsing,
				Message: fmt.Sprintf("TIER_PINNED_VALUES_JSON key %q is not an integer cent value", literal),
				Err:     err,
			}
		}
		pinned[cents] = tier
	}
	return pinned, nil
}
