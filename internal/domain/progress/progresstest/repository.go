// Package progresstest provides an in-memory progress.Repository for tests.
// It honors the same atomicity contract as the PostgreSQL implementation:
// conditional inserts are performed under a single lock, so concurrent calls
// resolve to exactly one persisted row.
package progresstest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

type progressKey struct {
	userID string
	slug   track.Slug
}

type finalizationKey struct {
	userID string
	slug   track.Slug
	day    int
}

type achievementKey struct {
	userID string
	typ    progress.AchievementType
	slug   track.Slug
}

// Repository is an in-memory progress.Repository.
type Repository struct {
	mu            sync.Mutex
	progress      map[progressKey]*progress.UserTrackProgress
	completions   map[progress.CompletionKey]*progress.ActivityCompletion
	finalizations map[finalizationKey]*progress.DayFinalization
	achievements  map[achievementKey]*progress.Achievement
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		progress:      make(map[progressKey]*progress.UserTrackProgress),
		completions:   make(map[progress.CompletionKey]*progress.ActivityCompletion),
		finalizations: make(map[finalizationKey]*progress.DayFinalization),
		achievements:  make(map[achievementKey]*progress.Achievement),
	}
}

// CreateProgress implements progress.Repository.
func (r *Repository) CreateProgress(_ context.Context, p *progress.UserTrackProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{p.UserID, p.TrackSlug}
	if _, exists := r.progress[key]; exists {
		return progress.ErrAlreadyEnrolled
	}
	r.progress[key] = p.Clone()
	return nil
}

// GetProgress implements progress.Repository.
func (r *Repository) GetProgress(_ context.Context, userID string, slug track.Slug) (*progress.UserTrackProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[progressKey{userID, slug}]
	if !ok {
		return nil, progress.ErrProgressNotFound
	}
	return p.Clone(), nil
}

// SetActive implements progress.Repository.
func (r *Repository) SetActive(_ context.Context, userID string, slug track.Slug, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[progressKey{userID, slug}]
	if !ok {
		return progress.ErrProgressNotFound
	}
	p.IsActive = active
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordCompletion implements progress.Repository.
func (r *Repository) RecordCompletion(_ context.Context, c *progress.ActivityCompletion, quantum int) (*progress.CompletionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[progressKey{c.UserID, c.TrackSlug}]
	if !ok {
		return nil, progress.ErrProgressNotFound
	}

	if prior, exists := r.completions[c.Key()]; exists {
		priorCopy := *prior
		return &progress.CompletionOutcome{
			Accepted:   false,
			Completion: &priorCopy,
			Progress:   p.Clone(),
		}, nil
	}

	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CompletedAt.IsZero() {
		stored.CompletedAt = time.Now().UTC()
	}
	r.completions[c.Key()] = &stored

	p.TotalPoints += stored.PointsEarned
	p.LevelNumber = progress.LevelForPoints(p.TotalPoints, quantum)
	p.LastActivityAt = stored.CompletedAt
	p.UpdatedAt = stored.CompletedAt

	storedCopy := stored
	return &progress.CompletionOutcome{
		Accepted:   true,
		Completion: &storedCopy,
		Progress:   p.Clone(),
	}, nil
}

// ReverseCompletion implements progress.Repository.
func (r *Repository) ReverseCompletion(_ context.Context, key progress.CompletionKey, quantum int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, finalized := r.finalizations[finalizationKey{key.UserID, key.TrackSlug, key.DayNumber}]; finalized {
		return progress.ErrDayFinalized
	}

	c, ok := r.completions[key]
	if !ok {
		return progress.ErrCompletionNotFound
	}
	delete(r.completions, key)

	if p, ok := r.progress[progressKey{key.UserID, key.TrackSlug}]; ok {
		p.TotalPoints -= c.PointsEarned
		if p.TotalPoints < 0 {
			p.TotalPoints = 0
		}
		p.LevelNumber = progress.LevelForPoints(p.TotalPoints, quantum)
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// ListDayCompletions implements progress.Repository.
func (r *Repository) ListDayCompletions(_ context.Context, userID string, slug track.Slug, day int) ([]progress.ActivityCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.ActivityCompletion
	for _, c := range r.completions {
		if c.UserID == userID && c.TrackSlug == slug && c.DayNumber == day {
			out = append(out, *c)
		}
	}
	return out, nil
}

// ListCompletions implements progress.Repository.
func (r *Repository) ListCompletions(_ context.Context, userID string, slug track.Slug) ([]progress.ActivityCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.ActivityCompletion
	for _, c := range r.completions {
		if c.UserID == userID && c.TrackSlug == slug {
			out = append(out, *c)
		}
	}
	return out, nil
}

// FinalizeDay implements progress.Repository.
func (r *Repository) FinalizeDay(_ context.Context, f *progress.DayFinalization, newStreak, newCurrentDay, quantum int) (*progress.FinalizeOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[progressKey{f.UserID, f.TrackSlug}]
	if !ok {
		return nil, progress.ErrProgressNotFound
	}

	key := finalizationKey{f.UserID, f.TrackSlug, f.DayNumber}
	if _, exists := r.finalizations[key]; exists {
		return &progress.FinalizeOutcome{Applied: false, Progress: p.Clone()}, nil
	}

	stored := *f
	if stored.FinalizedAt.IsZero() {
		stored.FinalizedAt = time.Now().UTC()
	}
	r.finalizations[key] = &stored

	p.TotalPoints += stored.BonusPoints
	p.LevelNumber = progress.LevelForPoints(p.TotalPoints, quantum)
	p.StreakDays = newStreak
	if newCurrentDay > p.CurrentDay {
		p.CurrentDay = newCurrentDay
	}
	p.LastActivityAt = stored.FinalizedAt
	p.UpdatedAt = stored.FinalizedAt

	return &progress.FinalizeOutcome{Applied: true, Progress: p.Clone()}, nil
}

// IsDayFinalized implements progress.Repository.
func (r *Repository) IsDayFinalized(_ context.Context, userID string, slug track.Slug, day int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.finalizations[finalizationKey{userID, slug, day}]
	return ok, nil
}

// ListFinalizations implements progress.Repository.
func (r *Repository) ListFinalizations(_ context.Context, userID string, slug track.Slug) ([]progress.DayFinalization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.DayFinalization
	for _, f := range r.finalizations {
		if f.UserID == userID && f.TrackSlug == slug {
			out = append(out, *f)
		}
	}
	return out, nil
}

// InsertAchievement implements progress.Repository.
func (r *Repository) InsertAchievement(_ context.Context, a *progress.Achievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := achievementKey{a.UserID, a.Type, a.TrackSlug}
	if _, exists := r.achievements[key]; exists {
		return false, nil
	}

	stored := *a
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.EarnedAt.IsZero() {
		stored.EarnedAt = time.Now().UTC()
	}
	r.achievements[key] = &stored
	return true, nil
}

// ListAchievements implements progress.Repository.
func (r *Repository) ListAchievements(_ context.Context, userID string) ([]progress.Achievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.Achievement
	for _, a := range r.achievements {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// HasAchievement implements progress.Repository.
func (r *Repository) HasAchievement(_ context.Context, userID string, t progress.AchievementType, slug track.Slug) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.achievements[achievementKey{userID, t, slug}]
	return ok, nil
}
