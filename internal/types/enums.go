package types

import "fmt"

// Tier identifies the subscription level derived from payment state.
// Exactly one tier is derivable for an account at any instant; the
// derivation lives in the entitlement package and is never persisted
// as authoritative state.
type Tier string

const (
	TierNone     Tier = "none"
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierFull     Tier = "full"
)

// AllTiers lists every tier in ascending order.
var AllTiers = []Tier{TierNone, TierBasic, TierStandard, TierFull}

// Rank returns the ordinal position of the tier, with TierNone at 0.
// Unknown tiers rank as 0 to fail safely.
func (t Tier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierStandard:
		return 2
	case TierFull:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierNone, TierBasic, TierStandard, TierFull:
		return true
	}
	return false
}

// Addon identifies an independently toggled paid feature. Add-ons are
// not gated by tier; tier only affects their monthly price.
type Addon string

const (
	AddonExtraction Addon = "extraction"
	AddonStreaming  Addon = "streaming"
	AddonUploader   Addon = "uploader"
)

// AllAddons lists every add-on in stable order.
var AllAddons = []Addon{AddonExtraction, AddonStreaming, AddonUploader}

// Valid reports whether a is one of the defined add-ons.
func (a Addon) Valid() bool {
	switch a {
	case AddonExtraction, AddonStreaming, AddonUploader:
		return true
	}
	return false
}

// CounterName identifies a rate-limited resource counter. Each counter is
// keyed by (accountID, CounterName) in the counter store.
type CounterName string

const (
	CounterDailyDownloads        CounterName = "daily_downloads"
	CounterWeeklyPackRequests    CounterName = "weekly_pack_requests"
	CounterWeeklyPlaylistExports CounterName = "weekly_playlist_exports"
)

// AllCounters lists every counter in stable order.
var AllCounters = []CounterName{
	CounterDailyDownloads,
	CounterWeeklyPackRequests,
	CounterWeeklyPlaylistExports,
}

// WindowKind identifies the reset cadence for a counter.
type WindowKind string

const (
	WindowDaily  WindowKind = "daily"
	WindowWeekly WindowKind = "weekly"
)

// Window returns the reset cadence bound to the counter.
func (c CounterName) Window() WindowKind {
	if c == CounterDailyDownloads {
		return WindowDaily
	}
	return WindowWeekly
}

// BenefitName identifies a named capability or limit in the effective
// benefit set. The names double as override-document keys, so they are
// part of the administrative surface contract.
type BenefitName string

const (
	BenefitDailyDownloads  BenefitName = "dailyDownloads"
	BenefitPackRequests    BenefitName = "packRequests"
	BenefitPlaylistExports BenefitName = "playlistExports"
)

// AllBenefits lists every benefit in stable order.
var AllBenefits = []BenefitName{
	BenefitDailyDownloads,
	BenefitPackRequests,
	BenefitPlaylistExports,
}

// Valid reports whether b is one of the defined benefit names.
func (b BenefitName) Valid() bool {
	switch b {
	case BenefitDailyDownloads, BenefitPackRequests, BenefitPlaylistExports:
		return true
	}
	return false
}

// Counter returns the quota counter backing the benefit's usage figure.
func (b BenefitName) Counter() CounterName {
	switch b {
	case BenefitPackRequests:
		return CounterWeeklyPackRequests
	case BenefitPlaylistExports:
		return CounterWeeklyPlaylistExports
	default:
		return CounterDailyDownloads
	}
}

// DenyReason is the machine-readable reason attached to every denial so
// the presentation layer can render an appropriate message without the
// engine knowing about presentation.
type DenyReason string

const (
	DenyReasonTier        DenyReason = "tier"
	DenyReasonQuota       DenyReason = "quota"
	DenyReasonUnavailable DenyReason = "unavailable"
)

// DenyReasonAddon builds the "addon:<name>" reason for a missing add-on.
func DenyReasonAddon(a Addon) DenyReason {
	return DenyReason(fmt.Sprintf("addon:%s", a))
}
