// Package timeutil provides timezone utilities for the Equilibrio platform.
// The user base is concentrated in Latin America, so day boundaries (streaks,
// daily content rollover) are computed in Bogotá time (UTC-5, no DST).
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// PlatformTZ is the platform timezone (UTC-5, no DST).
// Colombia has not observed DST since 1993, so this is constant year-round.
var PlatformTZ = time.FixedZone("America/Bogota", -5*60*60)

// Now returns the current time in the platform timezone.
func Now() time.Time {
	return time.Now().In(PlatformTZ)
}

// ToPlatform converts a time to the platform timezone.
func ToPlatform(t time.Time) time.Time {
	return t.In(PlatformTZ)
}

// StartOfDay truncates a time to midnight in the platform timezone.
func StartOfDay(t time.Time) time.Time {
	t = t.In(PlatformTZ)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, PlatformTZ)
}

// DaysBetween returns the number of calendar days between two instants in the
// platform timezone. Same calendar day yields 0, consecutive days 1.
// The result is negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	da, db := StartOfDay(a), StartOfDay(b)
	return int(db.Sub(da).Hours() / 24)
}

// SameDay reports whether two instants fall on the same platform calendar day.
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}
