// Package types holds the shared domain model for the entitlement and
// quota engine: the Account record, derived benefit views, counters, and
// the error taxonomy used across packages.
package types

import "time"

// Account is the persisted record the engine derives everything from.
// Tier-relevant fields are mutated only by an explicit administrative
// write or by a billing-status change event; quota counters live in the
// counter store, keyed by (accountID, CounterName), not on this struct.
type Account struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`

	// StoredValueCents is the amount an operator (or a billing event) has
	// recorded as paid, in cents. Nil means no payment on record.
	StoredValueCents *int64 `json:"stored_value_cents" db:"stored_value_cents"`

	// ExplicitVIP is an operator override that grants VIP-gated access
	// independent of tier math and neutralizes an expired payment record.
	ExplicitVIP bool `json:"explicit_vip" db:"explicit_vip"`

	// ExpiresAt, when set and in the past, voids the payment record unless
	// ExplicitVIP is set.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	AddonFlags       AddonFlags        `json:"addon_flags" db:"addon_flags"`
	BenefitOverrides *BenefitOverrides `json:"benefit_overrides,omitempty" db:"benefit_overrides"`

	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// LastBillingEventAt orders billing-status change events so stale or
	// duplicate provider webhooks are ignored.
	LastBillingEventAt *time.Time `json:"-" db:"last_billing_event_at"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// AddonFlags maps each add-on to its enabled flag. Stored as JSONB.
type AddonFlags map[Addon]bool

// Has reports whether the add-on flag is set.
func (f AddonFlags) Has(a Addon) bool {
	return f != nil && f[a]
}

// BenefitOverride is one entry of the per-account override document. All
// fields are optional; absent fields retain the tier default. Limit is a
// float at this layer because the document is untrusted input from the
// administrative surface -- the merge pass validates that it is a
// non-negative integer and drops it with a diagnostic otherwise.
type BenefitOverride struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	Limit       *float64 `json:"limit,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// BenefitOverrides is the raw per-account override document, keyed by
// benefit name. Unknown names are ignored (never propagated) during the
// merge. Stored as JSONB.
type BenefitOverrides map[string]BenefitOverride

// Benefit is the effective view of a single named benefit after merging
// tier defaults, overrides, and current usage.
type Benefit struct {
	Enabled bool `json:"enabled"`
	// Limit is nil for unlimited. A zero limit means fully consumed by
	// default, which is distinct from unlimited.
	Limit       *int       `json:"limit"`
	Used        int        `json:"used"`
	Description string     `json:"description,omitempty"`
	ResetsAt    *time.Time `json:"resets_at,omitempty"`
}

// BenefitSet is the merged, effective view consumed by the access gate
// and the profile surface. It is derived per request and never persisted.
type BenefitSet struct {
	Benefits map[BenefitName]Benefit `json:"benefits"`

	// Plain booleans mirroring the add-on flags after derivation.
	ExtractionEnabled bool `json:"extraction_enabled"`
	StreamingEnabled  bool `json:"streaming_enabled"`
	UploaderEnabled   bool `json:"uploader_enabled"`
}

// Diagnostic is a structured warning produced when a malformed override
// field is dropped during the merge. Diagnostics accompany a successful
// merge; they never block the request.
type Diagnostic struct {
	Benefit string `json:"benefit"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

// Counter is the per-(account, counter) quota state. Counts are
// monotonically non-decreasing between resets; a reset zeroes the count
// and advances WindowStart to the start of the new window.
type Counter struct {
	Count       int       `json:"count" db:"count"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
}

// IsZero reports whether the counter has never been written.
func (c Counter) IsZero() bool {
	return c.Count == 0 && c.WindowStart.IsZero()
}

// SessionClaims is the small claims bundle supplied by the external
// identity provider per request. The engine treats every field except
// AccountID as a hint: authoritative tier and flags are always recomputed
// from the persisted account, because claims may be stale relative to
// administrative changes.
type SessionClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	VIPHint   bool   `json:"vip_hint,omitempty"`
	AdminHint bool   `json:"admin_hint,omitempty"`
}

// AddonCharge describes one active add-on and its effective monthly price
// for profile and administrative views.
type AddonCharge struct {
	Addon            Addon `json:"addon"`
	MonthlyCostCents int64 `json:"monthly_cost_cents"`
}

// Standing is the full derived view of an account: tier, active add-ons
// with pricing, and the merged benefit set. It is assembled per request
// by the profile and administrative surfaces.
type Standing struct {
	AccountID   string        `json:"account_id"`
	Tier        Tier          `json:"tier"`
	ExplicitVIP bool          `json:"explicit_vip"`
	Addons      []AddonCharge `json:"addons"`
	Benefits    BenefitSet    `json:"benefits"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
}
