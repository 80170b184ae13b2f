// Package quota maintains the per-account counters for rate-limited
// actions. Each counter is bound to a reset window (calendar day or
// anchored week) computed in a fixed reference timezone, and consumption
// goes through an atomic check-and-increment against a CounterStore so
// concurrent callers on the same counter never over-consume.
package quota

import (
	"fmt"
	"time"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// DefaultTimezone is the reference timezone for window boundaries. Billing
// weeks follow local wall-clock expectations, not UTC.
const DefaultTimezone = "America/Sao_Paulo"

// Anchor fixes the weekly reset point: the weekday and hour (local time)
// at which a new week begins.
type Anchor struct {
	Weekday time.Weekday
	Hour    int
}

// DefaultAnchor resets weekly counters at Sunday 00:00 local time.
var DefaultAnchor = Anchor{Weekday: time.Sunday, Hour: 0}

// Windows computes window boundaries for both cadences in the reference
// timezone. Construct once at startup; safe for concurrent use.
type Windows struct {
	loc    *time.Location
	anchor Anchor
}

// NewWindows loads the reference timezone and validates the weekly anchor.
func NewWindows(timezone string, anchor Anchor) (*Windows, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown quota timezone %q", timezone), err)
	}
	if anchor.Hour < 0 || anchor.Hour > 23 {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("weekly anchor hour out of range: %d", anchor.Hour), nil)
	}
	return &Windows{loc: loc, anchor: anchor}, nil
}

// Location returns the reference timezone.
func (w *Windows) Location() *time.Location {
	return w.loc
}

// Start returns the start of the window containing now.
//
// Daily windows start at local midnight. Weekly windows start at the most
// recent anchor weekday/hour at or before now, so a week anchored to
// Sunday 00:00 runs Sunday through Saturday in local time.
func (w *Windows) Start(kind types.WindowKind, now time.Time) time.Time {
	local := now.In(w.loc)
	if kind == types.WindowDaily {
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc)
	}

	daysBack := (int(local.Weekday()) - int(w.anchor.Weekday) + 7) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-daysBack, w.anchor.Hour, 0, 0, 0, w.loc)
	if start.After(local) {
		start = time.Date(local.Year(), local.Month(), local.Day()-daysBack-7, w.anchor.Hour, 0, 0, 0, w.loc)
	}
	return start
}

// End returns the start of the window after the one beginning at start.
// Calendar arithmetic is used rather than a fixed duration so the
// boundaries survive timezone offset transitions.
func (w *Windows) End(kind types.WindowKind, start time.Time) time.Time {
	local := start.In(w.loc)
	if kind == types.WindowDaily {
		return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, w.loc)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+7, local.Hour(), 0, 0, 0, w.loc)
}

// NextReset returns when the window containing now rolls over.
func (w *Windows) NextReset(kind types.WindowKind, now time.Time) time.Time {
	return w.End(kind, w.Start(kind, now))
}

// Crossed reports whether a counter stamped with windowStart belongs to a
// window older than the one containing now. A zero windowStart (never
// written) always counts as crossed.
func (w *Windows) Crossed(kind types.WindowKind, windowStart, now time.Time) bool {
	return windowStart.Before(w.Start(kind, now))
}

// ParseLocalDate interprets a YYYY-MM-DD literal as local midday in the
// reference timezone. Midday, not midnight: interpreting date literals as
// UTC midnight shifts them to the previous day under negative UTC
// offsets, which was a recurring source of expiration-date bugs.
func (w *Windows) ParseLocalDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", value, w.loc)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value), err)
	}
	return d.Add(12 * time.Hour), nil
}
