package entitlement

import (
	"fmt"
	"math"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// BenefitDefault is the per-tier default for one named benefit. A nil
// limit means unlimited; zero means enabled-but-exhausted-by-default.
type BenefitDefault struct {
	Enabled bool `json:"enabled"`
	Limit   *int `json:"limit"`
}

// BenefitTable maps every tier to its default benefit set. This is the
// single source of truth for what each tier allows before per-account
// overrides are applied.
type BenefitTable map[types.Tier]map[types.BenefitName]BenefitDefault

func limit(n int) *int { return &n }

// DefaultBenefits is the production benefit table.
//
//	| Tier     | Downloads/Day | Pack requests/Week | Playlist exports/Week |
//	|----------|---------------|--------------------|-----------------------|
//	| none     | off           | off                | off                   |
//	| basic    | 50            | 2                  | 4                     |
//	| standard | 100           | 5                  | 8                     |
//	| full     | unlimited     | 10                 | 15                    |
var DefaultBenefits = BenefitTable{
	types.TierNone: {
		types.BenefitDailyDownloads:  {Enabled: false, Limit: limit(0)},
		types.BenefitPackRequests:    {Enabled: false, Limit: limit(0)},
		types.BenefitPlaylistExports: {Enabled: false, Limit: limit(0)},
	},
	types.TierBasic: {
		types.BenefitDailyDownloads:  {Enabled: true, Limit: limit(50)},
		types.BenefitPackRequests:    {Enabled: true, Limit: limit(2)},
		types.BenefitPlaylistExports: {Enabled: true, Limit: limit(4)},
	},
	types.TierStandard: {
		types.BenefitDailyDownloads:  {Enabled: true, Limit: limit(100)},
		types.BenefitPackRequests:    {Enabled: true, Limit: limit(5)},
		types.BenefitPlaylistExports: {Enabled: true, Limit: limit(8)},
	},
	types.TierFull: {
		types.BenefitDailyDownloads:  {Enabled: true, Limit: nil},
		types.BenefitPackRequests:    {Enabled: true, Limit: limit(10)},
		types.BenefitPlaylistExports: {Enabled: true, Limit: limit(15)},
	},
}

// Validate rejects tables missing a tier or benefit, or carrying negative
// limits. Fatal at startup.
func (bt BenefitTable) Validate() error {
	for _, tier := range types.AllTiers {
		row, ok := bt[tier]
		if !ok {
			return types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("benefit table missing tier %q", tier), nil)
		}
		for _, name := range types.AllBenefits {
			def, ok := row[name]
			if !ok {
				return types.NewAppError(types.ErrCodeConfigInvalid,
					fmt.Sprintf("benefit table missing %q for tier %q", name, tier), nil)
			}
			if def.Limit != nil && *def.Limit < 0 {
				return types.NewAppError(types.ErrCodeConfigInvalid,
					fmt.Sprintf("benefit %q for tier %q has negative limit %d", name, tier, *def.Limit), nil)
			}
		}
	}
	return nil
}

// Usage carries the current counter values consumed by the merge. The
// caller populates it from the quota tracker; overrides never set usage.
type Usage map[types.CounterName]int

// MergeBenefits overlays the account's override document onto the tier's
// default benefit row and populates usage from the current counters.
//
// The override document is untrusted input from the administrative
// surface. Unknown benefit names are ignored and not propagated. A limit
// override that is negative or not an integer is dropped, and a
// structured diagnostic is returned alongside the merged set; a malformed
// field never blocks the rest of the merge.
func MergeBenefits(
	table BenefitTable,
	tier types.Tier,
	addons []types.Addon,
	overrides *types.BenefitOverrides,
	usage Usage,
) (types.BenefitSet, []types.Diagnostic) {
	row := table[tier]
	if row == nil {
		row = table[types.TierNone]
	}

	set := types.BenefitSet{
		Benefits: make(map[types.BenefitName]types.Benefit, len(types.AllBenefits)),
	}
	for _, addon := range addons {
		switch addon {
		case types.AddonExtraction:
			set.ExtractionEnabled = true
		case types.AddonStreaming:
			set.StreamingEnabled = true
		case types.AddonUploader:
			set.UploaderEnabled = true
		}
	}

	var diags []types.Diagnostic
	for _, name := range types.AllBenefits {
		def := row[name]
		benefit := types.Benefit{
			Enabled: def.Enabled,
			Limit:   copyLimit(def.Limit),
			Used:    usage[name.Counter()],
		}

		if overrides != nil {
			if ov, ok := (*overrides)[string(name)]; ok {
				applyOverride(&benefit, name, ov, &diags)
			}
		}

		set.Benefits[name] = benefit
	}

	if overrides != nil {
		for key := range *overrides {
			if !types.BenefitName(key).Valid() {
				diags = append(diags, types.Diagnostic{
					Benefit: key,
					Field:   "",
					Reason:  "unknown benefit name ignored",
				})
			}
		}
	}

	return set, diags
}

// applyOverride merges one override entry field by field. Absent fields
// retain the default already present on benefit.
func applyOverride(benefit *types.Benefit, name types.BenefitName, ov types.BenefitOverride, diags *[]types.Diagnostic) {
	if ov.Enabled != nil {
		benefit.Enabled = *ov.Enabled
	}
	if ov.Limit != nil {
		switch v := *ov.Limit; {
		case v < 0:
			*diags = append(*diags, types.Diagnostic{
				Benefit: string(name),
				Field:   "limit",
				Reason:  fmt.Sprintf("negative limit %v rejected, tier default kept", v),
			})
		case v != math.Trunc(v):
			*diags = append(*diags, types.Diagnostic{
				Benefit: string(name),
				Field:   "limit",
				Reason:  fmt.Sprintf("non-integer limit %v rejected, tier default kept", v),
			})
		default:
			benefit.Limit = limit(int(v))
		}
	}
	if ov.Description != nil {
		benefit.Description = *ov.Description
	}
}

func copyLimit(l *int) *int {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
