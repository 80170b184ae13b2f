// Package access is the per-request gate for protected paths. It decides
// from persisted account state whether a request may proceed; it never
// touches quota counters, which are consumed separately inside the
// handler doing the rate-limited work.
package access

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/entitlement"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// Class is one requirement on a protected path. A path may carry several;
// all must pass.
type Class struct {
	// Tier requires a resolved tier other than none.
	Tier bool
	// Addon, when non-empty, requires that add-on active on the account.
	Addon types.Addon
}

// ParseClass parses a configured class literal: "tier" or "addon:<name>".
// Anything else is a configuration error, fatal at startup.
func ParseClass(literal string) (Class, error) {
	if literal == "tier" {
		return Class{Tier: true}, nil
	}
	if name, ok := strings.CutPrefix(literal, "addon:"); ok {
		a := types.Addon(name)
		if !a.Valid() {
			return Class{}, types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("unknown add-on in path class %q", literal), nil)
		}
		return Class{Addon: a}, nil
	}
	return Class{}, types.NewAppError(types.ErrCodeConfigInvalid,
		fmt.Sprintf("unknown protected-path class %q", literal), nil)
}

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Allowed bool
	// Reason is set on denial: "tier" or "addon:<name>".
	Reason types.DenyReason
}

var allow = Decision{Allowed: true}

func deny(reason types.DenyReason) Decision {
	return Decision{Reason: reason}
}

// Policy maps protected path prefixes to their class requirements.
// Paths outside the map are always allowed. Construct once at startup;
// safe for concurrent use.
type Policy struct {
	resolver entitlement.Resolver
	// rules is ordered longest-prefix-first so the most specific
	// protected path wins.
	rules []pathRule
}

type pathRule struct {
	prefix  string
	classes []Class
}

// DefaultProtectedPaths is the shipped protected-path set. Download,
// pack-request and playlist-export surfaces are tier-gated; the
// extraction, streaming and upload surfaces are gated on their add-on
// alone, independent of tier.
var DefaultProtectedPaths = map[string][]string{
	"/downloads":        {"tier"},
	"/pack-requests":    {"tier"},
	"/playlist-exports": {"tier"},
	"/extraction":       {"addon:extraction"},
	"/streaming":        {"addon:streaming"},
	"/uploads":          {"addon:uploader"},
}

// NewPolicy parses the configured path map. Any unparseable class literal
// fails construction.
func NewPolicy(resolver entitlement.Resolver, paths map[string][]string) (*Policy, error) {
	rules := make([]pathRule, 0, len(paths))
	for prefix, literals := range paths {
		if prefix == "" || !strings.HasPrefix(prefix, "/") {
			return nil, types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("protected path %q must start with /", prefix), nil)
		}
		classes := make([]Class, 0, len(literals))
		for _, lit := range literals {
			c, err := ParseClass(lit)
			if err != nil {
				return nil, err
			}
			classes = append(classes, c)
		}
		rules = append(rules, pathRule{prefix: prefix, classes: classes})
	}
	sort.Slice(rules, func(i, j int) bool {
		return len(rules[i].prefix) > len(rules[j].prefix)
	})
	return &Policy{resolver: resolver, rules: rules}, nil
}

// match returns the classes of the most specific protected prefix
// covering path, or nil when the path is unprotected.
func (p *Policy) match(path string) []Class {
	for _, r := range p.rules {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.classes
		}
	}
	return nil
}

// Decide evaluates the gate for one request. Administrators always pass.
// Unprotected paths always pass. Otherwise every class on the matched
// rule must be satisfied against the persisted account state; the first
// failing class supplies the denial reason.
func (p *Policy) Decide(account types.Account, path string, now time.Time) Decision {
	if account.IsAdmin {
		return allow
	}

	classes := p.match(path)
	if len(classes) == 0 {
		return allow
	}

	for _, c := range classes {
		if c.Tier {
			tier := p.resolver.ResolveAccount(account, now)
			if tier == types.TierNone && !account.ExplicitVIP {
				return deny(types.DenyReasonTier)
			}
		}
		if c.Addon != "" && !entitlement.HasAddon(account, c.Addon) {
			return deny(types.DenyReasonAddon(c.Addon))
		}
	}
	return allow
}
