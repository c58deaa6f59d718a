package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TRACK STATE QUERY
// Returns a user's full progression state on one track: the aggregate, the
// resolved content for the current day, per-day completion indexes, finalized
// days, and earned achievements. One call powers the dashboard and the home
// screen's "continue where you left off".
// ══════════════════════════════════════════════════════════════════════════════

// GetTrackStateQuery contains the parameters for a track state read.
type GetTrackStateQuery struct {
	// UserID identifies the user.
	UserID string

	// TrackSlug identifies the track.
	TrackSlug string

	// Attributes is the user's personalization snapshot, used to resolve the
	// current day's content.
	Attributes personalization.UserAttributes
}

// Validate validates the query parameters.
func (q GetTrackStateQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_track_state: user_id is required")
	}
	if _, err := track.ParseSlug(q.TrackSlug); err != nil {
		return fmt.Errorf("get_track_state: invalid track slug %q: %w", q.TrackSlug, err)
	}
	return nil
}

// AchievementDTO is one earned achievement.
type AchievementDTO struct {
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	TrackSlug string    `json:"track_slug,omitempty"`
	Points    int       `json:"points"`
	EarnedAt  time.Time `json:"earned_at"`
}

// TrackStateDTO is a user's progression state on one track.
type TrackStateDTO struct {
	UserID         string           `json:"user_id"`
	TrackSlug      string           `json:"track_slug"`
	CurrentDay     int              `json:"current_day"`
	DurationDays   int              `json:"duration_days"`
	TotalPoints    int              `json:"total_points"`
	StreakDays     int              `json:"streak_days"`
	LevelNumber    int              `json:"level_number"`
	IsActive       bool             `json:"is_active"`
	TrackCompleted bool             `json:"track_completed"`
	StartedAt      time.Time        `json:"started_at"`
	LastActivityAt time.Time        `json:"last_activity_at,omitempty"`
	CompletedDays  []int            `json:"completed_days"`
	DayActivities  map[int][]int    `json:"day_activities"`
	Achievements   []AchievementDTO `json:"achievements"`

	// CurrentDayContent is the resolved content for CurrentDay, so the
	// dashboard renders without a second content round trip. Past the final
	// day it carries the track-complete sentinel.
	CurrentDayContent *DayContentDTO `json:"current_day_content"`
}

// GetTrackStateHandler handles the GetTrackStateQuery.
type GetTrackStateHandler struct {
	catalog      *track.Catalog
	progressRepo progress.Repository
	resolver     *personalization.Resolver
}

// NewGetTrackStateHandler creates a new GetTrackStateHandler.
func NewGetTrackStateHandler(catalog *track.Catalog, progressRepo progress.Repository, resolver *personalization.Resolver) *GetTrackStateHandler {
	return &GetTrackStateHandler{
		catalog:      catalog,
		progressRepo: progressRepo,
		resolver:     resolver,
	}
}

// Handle executes the query.
func (h *GetTrackStateHandler) Handle(ctx context.Context, q GetTrackStateQuery) (*TrackStateDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("progress", "get_track_state", shared.ErrValidation, err.Error(), err)
	}

	slug := track.Slug(q.TrackSlug)
	def, err := h.catalog.Get(slug)
	if err != nil {
		return nil, shared.WrapError("progress", "get_track_state", shared.ErrValidation,
			fmt.Sprintf("unknown track %q", q.TrackSlug), err)
	}

	prog, err := h.progressRepo.GetProgress(ctx, q.UserID, slug)
	if err != nil {
		return nil, fmt.Errorf("get_track_state: load progress: %w", err)
	}

	completions, err := h.progressRepo.ListCompletions(ctx, q.UserID, slug)
	if err != nil {
		return nil, fmt.Errorf("get_track_state: list completions: %w", err)
	}

	finalizations, err := h.progressRepo.ListFinalizations(ctx, q.UserID, slug)
	if err != nil {
		return nil, fmt.Errorf("get_track_state: list finalizations: %w", err)
	}

	achievements, err := h.progressRepo.ListAchievements(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_track_state: list achievements: %w", err)
	}

	dto := &TrackStateDTO{
		UserID:         prog.UserID,
		TrackSlug:      prog.TrackSlug.String(),
		CurrentDay:     prog.CurrentDay,
		DurationDays:   def.DurationDays,
		TotalPoints:    prog.TotalPoints,
		StreakDays:     prog.StreakDays,
		LevelNumber:    prog.LevelNumber,
		IsActive:       prog.IsActive,
		TrackCompleted: prog.HasCompletedTrack(def),
		StartedAt:      prog.StartedAt,
		LastActivityAt: prog.LastActivityAt,
		CompletedDays:  make([]int, 0, len(finalizations)),
		DayActivities:  make(map[int][]int),
		Achievements:   make([]AchievementDTO, 0, len(achievements)),
	}

	for _, f := range finalizations {
		dto.CompletedDays = append(dto.CompletedDays, f.DayNumber)
	}
	sort.Ints(dto.CompletedDays)

	for _, c := range completions {
		dto.DayActivities[c.DayNumber] = append(dto.DayActivities[c.DayNumber], c.ActivityIndex)
	}
	for day := range dto.DayActivities {
		sort.Ints(dto.DayActivities[day])
	}

	for _, a := range achievements {
		// Global achievements apply everywhere; track-scoped ones only here.
		if a.TrackSlug != "" && a.TrackSlug != slug {
			continue
		}
		adto := AchievementDTO{
			Type:      string(a.Type),
			TrackSlug: a.TrackSlug.String(),
			Points:    a.PointsAwarded,
			EarnedAt:  a.EarnedAt,
		}
		if adef, ok := progress.GetAchievementDefinition(a.Type); ok {
			adto.Name = adef.Name
		}
		dto.Achievements = append(dto.Achievements, adto)
	}
	sort.Slice(dto.Achievements, func(i, j int) bool {
		return dto.Achievements[i].EarnedAt.Before(dto.Achievements[j].EarnedAt)
	})

	resolved, err := h.resolver.Resolve(ctx, slug, prog.CurrentDay, q.Attributes)
	if err != nil {
		return nil, fmt.Errorf("get_track_state: resolve current day content: %w", err)
	}
	dto.CurrentDayContent = newDayContentDTO(resolved)

	return dto, nil
}
