// Package saga contains business processes that orchestrate multiple
// domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Progress → Load History → Check Conditions → Grant If Absent →
// Publish Events
//
// Grants are idempotent by construction: the store's insert-if-absent on
// (user, type, track scope) is the only dedup mechanism, so the saga may run
// any number of times, including concurrently, without duplicate badges.
// Badge bonus points live on the badge row and never touch track totals.
// ══════════════════════════════════════════════════════════════════════════════

// conditions are evaluated against this snapshot of a user's progression.
type achievementSnapshot struct {
	progress        *progress.UserTrackProgress
	definition      track.Definition
	completionCount int
	finalizedCount  int
}

// achievementRule pairs a badge type with its unlock condition.
type achievementRule struct {
	Type      progress.AchievementType
	Condition func(s achievementSnapshot) bool
}

// achievementRules is the data-driven unlock table. Order is stable so that
// event emission is deterministic within one run.
var achievementRules = []achievementRule{
	{progress.AchievementFirstActivity, func(s achievementSnapshot) bool {
		return s.completionCount >= 1
	}},
	{progress.AchievementStreak3, func(s achievementSnapshot) bool {
		return s.progress.StreakDays >= 3
	}},
	{progress.AchievementStreak7, func(s achievementSnapshot) bool {
		return s.progress.StreakDays >= 7
	}},
	{progress.AchievementStreak21, func(s achievementSnapshot) bool {
		return s.progress.StreakDays >= 21
	}},
	{progress.AchievementPoints500, func(s achievementSnapshot) bool {
		return s.progress.TotalPoints >= 500
	}},
	{progress.AchievementPoints1000, func(s achievementSnapshot) bool {
		return s.progress.TotalPoints >= 1000
	}},
	{progress.AchievementLevel5, func(s achievementSnapshot) bool {
		return s.progress.LevelNumber >= 5
	}},
	{progress.AchievementTrackComplete, func(s achievementSnapshot) bool {
		return s.progress.HasCompletedTrack(s.definition)
	}},
}

// AchievementFlowResult contains the result of one evaluation run.
type AchievementFlowResult struct {
	// UserID - the user who was evaluated.
	UserID string

	// TrackSlug - the track that triggered the evaluation.
	TrackSlug track.Slug

	// NewAchievements - badges granted by this run.
	NewAchievements []progress.Achievement

	// ProcessedAt - when the run completed.
	ProcessedAt time.Time
}

// HasNewAchievements returns true if any badge was granted.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.NewAchievements) > 0
}

// AchievementFlowSaga evaluates the unlock table and grants badges.
type AchievementFlowSaga struct {
	catalog        *track.Catalog
	progressRepo   progress.Repository
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewAchievementFlowSaga creates a new AchievementFlowSaga.
func NewAchievementFlowSaga(
	catalog *track.Catalog,
	progressRepo progress.Repository,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *AchievementFlowSaga {
	if log == nil {
		log = logger.Default()
	}
	return &AchievementFlowSaga{
		catalog:        catalog,
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("achievement_flow")),
	}
}

// Evaluate grants any achievement whose condition newly holds for the user
// on the given track. Safe to re-run; duplicates are silently skipped.
func (s *AchievementFlowSaga) Evaluate(ctx context.Context, userID string, slug track.Slug) error {
	_, err := s.Execute(ctx, userID, slug)
	return err
}

// Execute runs a full evaluation and reports what was granted.
func (s *AchievementFlowSaga) Execute(ctx context.Context, userID string, slug track.Slug) (*AchievementFlowResult, error) {
	if userID == "" {
		return nil, errors.New("achievement_flow: user_id is required")
	}

	def, err := s.catalog.Get(slug)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: unknown track %q: %w", slug, err)
	}

	prog, err := s.progressRepo.GetProgress(ctx, userID, slug)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: load progress: %w", err)
	}

	completions, err := s.progressRepo.ListCompletions(ctx, userID, slug)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: list completions: %w", err)
	}

	finalizations, err := s.progressRepo.ListFinalizations(ctx, userID, slug)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: list finalizations: %w", err)
	}

	snapshot := achievementSnapshot{
		progress:        prog,
		definition:      def,
		completionCount: len(completions),
		finalizedCount:  len(finalizations),
	}

	result := &AchievementFlowResult{
		UserID:          userID,
		TrackSlug:       slug,
		NewAchievements: make([]progress.Achievement, 0),
	}

	for _, rule := range achievementRules {
		if !rule.Condition(snapshot) {
			continue
		}
		granted, err := s.grant(ctx, userID, slug, rule.Type)
		if err != nil {
			return result, err
		}
		if granted != nil {
			result.NewAchievements = append(result.NewAchievements, *granted)
		}
	}

	result.ProcessedAt = time.Now().UTC()
	if result.HasNewAchievements() {
		s.log.Info("achievements granted",
			logger.UserID(userID),
			logger.Track(slug.String()),
			logger.Int("count", len(result.NewAchievements)))
	}
	return result, nil
}

// grant inserts the badge if absent and publishes its event on success.
// A duplicate returns (nil, nil).
func (s *AchievementFlowSaga) grant(ctx context.Context, userID string, slug track.Slug, t progress.AchievementType) (*progress.Achievement, error) {
	def, ok := progress.GetAchievementDefinition(t)
	if !ok {
		return nil, fmt.Errorf("achievement_flow: no definition for type %q", t)
	}

	badge := &progress.Achievement{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          t,
		PointsAwarded: def.Points,
		EarnedAt:      time.Now().UTC(),
	}
	if def.TrackScoped {
		badge.TrackSlug = slug
	}

	inserted, err := s.progressRepo.InsertAchievement(ctx, badge)
	if err != nil {
		return nil, fmt.Errorf("achievement_flow: grant %q: %w", t, err)
	}
	if !inserted {
		return nil, nil
	}

	event := shared.NewAchievementUnlockedEvent(userID, string(t), badge.TrackSlug.String(), def.Points)
	_ = s.eventPublisher.Publish(event)
	return badge, nil
}
