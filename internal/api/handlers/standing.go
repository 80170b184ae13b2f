// Package handlers contains the HTTP handler implementations for the
// entitlement API: the profile surface, the rate-limited action
// endpoints, the administrative surface, and the billing webhook.
package handlers

import (
	"context"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/entitlement"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// QuotaService is the quota tracker subset the handlers consume.
type QuotaService interface {
	TryConsume(ctx context.Context, accountID string, name types.CounterName, limit *int, now time.Time) (quota.Result, error)
	Snapshot(ctx context.Context, accountID string, now time.Time) (map[types.CounterName]quota.CounterView, error)
	Reset(ctx context.Context, accountID string, name types.CounterName, now time.Time) error
}

// buildStanding assembles the full derived view of an account as of now:
// resolved tier, active add-ons with effective pricing, and the merged
// benefit set populated with live usage and reset times. Nothing here is
// persisted; the standing is recomputed on every call so administrative
// changes take effect immediately.
func buildStanding(
	ctx context.Context,
	rt *config.Runtime,
	q QuotaService,
	account types.Account,
	now time.Time,
) (types.Standing, error) {
	tier := rt.Resolver.ResolveAccount(account, now)

	views, err := q.Snapshot(ctx, account.ID, now)
	if err != nil {
		return types.Standing{}, err
	}

	usage := make(entitlement.Usage, len(views))
	for name, view := range views {
		usage[name] = view.Used
	}

	set, diags := entitlement.MergeBenefits(
		rt.Benefits,
		tier,
		entitlement.ActiveAddons(account),
		account.BenefitOverrides,
		usage,
	)

	for name, benefit := range set.Benefits {
		if view, ok := views[name.Counter()]; ok {
			resetsAt := view.ResetsAt
			benefit.ResetsAt = &resetsAt
			set.Benefits[name] = benefit
		}
	}

	return types.Standing{
		AccountID:   account.ID,
		Tier:        tier,
		ExplicitVIP: account.ExplicitVIP,
		Addons:      rt.Pricing.Charges(account, tier),
		Benefits:    set,
		Diagnostics: diags,
	}, nil
}

// effectiveLimit merges benefits without usage and returns the benefit
// row backing the counter, for the action handlers that only need the
// limit before consuming.
func effectiveLimit(rt *config.Runtime, account types.Account, name types.BenefitName, now time.Time) types.Benefit {
	tier := rt.Resolver.ResolveAccount(account, now)
	set, _ := entitlement.MergeBenefits(
		rt.Benefits,
		tier,
		entitlement.ActiveAddons(account),
		account.BenefitOverrides,
		nil,
	)
	return set.Benefits[name]
}
