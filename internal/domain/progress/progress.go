// Package progress contains the per-user progression state for the
// Equilibrio engine: track progress aggregates, the append-only activity
// completion log, day finalizations, and achievements.
package progress

import (
	"fmt"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/pkg/timeutil"
)

// DefaultLevelPointQuantum is used when a track does not configure its own.
const DefaultLevelPointQuantum = 100

// StreakContinuityDays is the continuity window: a day completion extends the
// streak when it lands on the same calendar day as the previous one or on the
// immediately following day; a larger gap resets the streak.
const StreakContinuityDays = 1

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrProgressNotFound - no progress row exists for (user, track).
	ErrProgressNotFound = shared.NewDomainError("progress", "Get", shared.ErrNotFound,
		"track progress not found")

	// ErrAlreadyEnrolled - the user already has progress on this track.
	ErrAlreadyEnrolled = shared.NewDomainError("progress", "Enroll", shared.ErrAlreadyExists,
		"user already enrolled in track")

	// ErrCompletionNotFound - no completion row exists for the composite key.
	ErrCompletionNotFound = shared.NewDomainError("progress", "ReverseCompletion", shared.ErrNotFound,
		"activity completion not found")

	// ErrDayFinalized - the owning day is finalized; its rows are immutable.
	ErrDayFinalized = shared.NewDomainError("progress", "ReverseCompletion", shared.ErrImmutable,
		"day is finalized")

	// ErrTrackInactive - the progress row has been deactivated.
	ErrTrackInactive = shared.NewDomainError("progress", "Mutate", shared.ErrInvalidState,
		"track progress is not active")
)

// ══════════════════════════════════════════════════════════════════════════════
// USER TRACK PROGRESS
// One aggregate per (user, track). current_day and total_points are
// monotonically non-decreasing while the track is active; reversing a
// not-yet-finalized completion is the single sanctioned exception for points.
// ══════════════════════════════════════════════════════════════════════════════

// UserTrackProgress is the per-user state on one track.
type UserTrackProgress struct {
	// UserID identifies the user. Always explicit; the engine has no
	// ambient "current user".
	UserID string

	// TrackSlug identifies the track.
	TrackSlug track.Slug

	// CurrentDay is the day the user is on, in [1, duration+1].
	// duration+1 is the sentinel for "track complete".
	CurrentDay int

	// TotalPoints equals the sum of points over the completion log plus all
	// applied day bonuses. It is never mutated independently of those.
	TotalPoints int

	// StreakDays counts consecutive finalized days.
	StreakDays int

	// LevelNumber is derived: floor(TotalPoints / quantum) + 1.
	LevelNumber int

	// LastActivityAt is the time of the last accepted mutation.
	LastActivityAt time.Time

	// IsActive is false for deactivated (never deleted) progress.
	IsActive bool

	// StartedAt is when the user first engaged with the track.
	StartedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserTrackProgress creates the day-1, zero-point aggregate for a user's
// first engagement with a track.
func NewUserTrackProgress(userID string, slug track.Slug) (*UserTrackProgress, error) {
	if userID == "" {
		return nil, shared.NewDomainError("progress", "Enroll", shared.ErrInvalidID,
			"user id is required")
	}
	if !slug.IsValid() {
		return nil, shared.NewDomainError("progress", "Enroll", shared.ErrInvalidInput,
			fmt.Sprintf("invalid track slug %q", slug))
	}

	now := time.Now().UTC()
	return &UserTrackProgress{
		UserID:      userID,
		TrackSlug:   slug,
		CurrentDay:  1,
		TotalPoints: 0,
		StreakDays:  0,
		LevelNumber: 1,
		IsActive:    true,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// LevelForPoints computes the level for a point total.
func LevelForPoints(points, quantum int) int {
	if quantum <= 0 {
		quantum = DefaultLevelPointQuantum
	}
	if points < 0 {
		points = 0
	}
	return points/quantum + 1
}

// NextStreak computes the streak value a day finalization at the given time
// would produce. The streak extends when the gap since the last activity is
// within the continuity window, otherwise it restarts at 1.
func (p *UserTrackProgress) NextStreak(at time.Time) (streak int, wasReset bool) {
	if p.LastActivityAt.IsZero() || p.StreakDays == 0 {
		return 1, false
	}

	gap := timeutil.DaysBetween(p.LastActivityAt, at)
	if gap < 0 {
		// Out-of-order clock; treat as same-day continuation.
		gap = 0
	}
	if gap <= StreakContinuityDays {
		return p.StreakDays + 1, false
	}
	return 1, true
}

// NextCurrentDay computes the advanced current day after finalizing the given
// day, capped at the track-complete sentinel.
func (p *UserTrackProgress) NextCurrentDay(day int, def track.Definition) int {
	next := day + 1
	if next < p.CurrentDay {
		next = p.CurrentDay
	}
	if next > def.CompletedDay() {
		next = def.CompletedDay()
	}
	return next
}

// HasReachedDay reports whether the user may interact with the given day.
func (p *UserTrackProgress) HasReachedDay(day int) bool {
	return day <= p.CurrentDay
}

// HasCompletedTrack reports whether the current day sits at the completion
// sentinel for the given definition.
func (p *UserTrackProgress) HasCompletedTrack(def track.Definition) bool {
	return p.CurrentDay >= def.CompletedDay()
}

// Deactivate marks the progress inactive. Progress is never deleted.
func (p *UserTrackProgress) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
}

// String returns a compact representation for logging.
func (p *UserTrackProgress) String() string {
	return fmt.Sprintf("Progress{User: %s, Track: %s, Day: %d, Points: %d, Streak: %d, Level: %d}",
		p.UserID, p.TrackSlug, p.CurrentDay, p.TotalPoints, p.StreakDays, p.LevelNumber)
}

// Clone returns a copy of the aggregate.
func (p *UserTrackProgress) Clone() *UserTrackProgress {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
