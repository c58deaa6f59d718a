package progress

import (
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY COMPLETION LOG
// Append-only: one row per (user, track, day, activity_index). Rows are
// immutable once the owning day is finalized. Uniqueness on the composite key
// is enforced by the storage layer, never by application-side checks.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityCompletion is one row of the completion log.
type ActivityCompletion struct {
	// ID is the surrogate row identifier (UUID).
	ID string

	// UserID, TrackSlug, DayNumber and ActivityIndex form the composite
	// uniqueness key.
	UserID        string
	TrackSlug     track.Slug
	DayNumber     int
	ActivityIndex int

	// PointsEarned is the point value of the activity at completion time.
	PointsEarned int

	// CompletedAt is when the completion was accepted.
	CompletedAt time.Time
}

// Key returns the composite key of the completion for map lookups.
func (c ActivityCompletion) Key() CompletionKey {
	return CompletionKey{
		UserID:        c.UserID,
		TrackSlug:     c.TrackSlug,
		DayNumber:     c.DayNumber,
		ActivityIndex: c.ActivityIndex,
	}
}

// CompletionKey identifies one completion slot.
type CompletionKey struct {
	UserID        string
	TrackSlug     track.Slug
	DayNumber     int
	ActivityIndex int
}

// CompletionOutcome is the result of recording a completion.
type CompletionOutcome struct {
	// Accepted is true when a new row was inserted, false for the idempotent
	// duplicate (the row already existed).
	Accepted bool

	// Completion is the persisted row: the new one when accepted, the prior
	// one otherwise.
	Completion *ActivityCompletion

	// Progress is the aggregate after the award (unchanged on duplicates).
	Progress *UserTrackProgress
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY FINALIZATION
// One row per finalized (user, track, day). The unique insert on this table
// is what makes completeDay award its bonus exactly once.
// ══════════════════════════════════════════════════════════════════════════════

// DayFinalization records that a day was completed and its bonus applied.
type DayFinalization struct {
	UserID      string
	TrackSlug   track.Slug
	DayNumber   int
	BonusPoints int
	FinalizedAt time.Time
}

// FinalizeOutcome is the result of finalizing a day.
type FinalizeOutcome struct {
	// Applied is true when this call performed the finalization, false when
	// the day was already finalized (safe no-op).
	Applied bool

	// Progress is the aggregate after the award.
	Progress *UserTrackProgress
}
