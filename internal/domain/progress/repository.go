package progress

import (
	"context"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// The Progress Store contract. Implementations live in
// infrastructure/persistence. Award methods must be backed by atomic
// conditional inserts (unique constraint, conflict = already exists); the
// engine never relies on application-side check-then-insert sequencing.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the durable progress store.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Progress aggregate
	// ─────────────────────────────────────────────────────────────────────────

	// CreateProgress inserts a new (user, track) aggregate.
	// Returns ErrAlreadyEnrolled when the pair already exists.
	CreateProgress(ctx context.Context, p *UserTrackProgress) error

	// GetProgress returns the aggregate for (user, track).
	// Returns ErrProgressNotFound when absent.
	GetProgress(ctx context.Context, userID string, slug track.Slug) (*UserTrackProgress, error)

	// SetActive activates or deactivates the aggregate. Progress rows are
	// never deleted.
	SetActive(ctx context.Context, userID string, slug track.Slug, active bool) error

	// ─────────────────────────────────────────────────────────────────────────
	// Activity completions
	// ─────────────────────────────────────────────────────────────────────────

	// RecordCompletion atomically inserts a completion row and applies its
	// point award to the aggregate in one transaction. A conflict on the
	// composite key is not an error: the outcome carries Accepted=false and
	// the prior row, leaving all state untouched.
	RecordCompletion(ctx context.Context, c *ActivityCompletion, quantum int) (*CompletionOutcome, error)

	// ReverseCompletion deletes a completion row and withdraws its points.
	// Returns ErrDayFinalized when the owning day is finalized and
	// ErrCompletionNotFound when no row exists.
	ReverseCompletion(ctx context.Context, key CompletionKey, quantum int) error

	// ListDayCompletions returns the completion rows of one day.
	ListDayCompletions(ctx context.Context, userID string, slug track.Slug, day int) ([]ActivityCompletion, error)

	// ListCompletions returns all completion rows of a (user, track).
	ListCompletions(ctx context.Context, userID string, slug track.Slug) ([]ActivityCompletion, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Day finalization
	// ─────────────────────────────────────────────────────────────────────────

	// FinalizeDay atomically records the finalization and applies the day
	// award (bonus points, streak, level, day advance) in one transaction.
	// A conflict on (user, track, day) means the day was finalized before:
	// the outcome carries Applied=false and nothing changes.
	FinalizeDay(ctx context.Context, f *DayFinalization, newStreak, newCurrentDay, quantum int) (*FinalizeOutcome, error)

	// IsDayFinalized reports whether (user, track, day) is finalized.
	IsDayFinalized(ctx context.Context, userID string, slug track.Slug, day int) (bool, error)

	// ListFinalizations returns all finalizations of a (user, track).
	ListFinalizations(ctx context.Context, userID string, slug track.Slug) ([]DayFinalization, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Achievements
	// ─────────────────────────────────────────────────────────────────────────

	// InsertAchievement inserts a badge if absent. Returns false without
	// error when the (user, type[, track]) badge already exists.
	InsertAchievement(ctx context.Context, a *Achievement) (bool, error)

	// ListAchievements returns all badges of a user.
	ListAchievements(ctx context.Context, userID string) ([]Achievement, error)

	// HasAchievement reports whether the badge exists.
	HasAchievement(ctx context.Context, userID string, t AchievementType, slug track.Slug) (bool, error)
}
