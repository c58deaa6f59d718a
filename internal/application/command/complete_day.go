package command

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
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE DAY COMMAND
// Finalizes one track day: gates on required activities, awards the day's
// declared reward, and recomputes streak, level and current day in a single
// atomic store operation. Achievement evaluation runs afterwards as a
// best-effort side effect and never fails the finalization.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementEvaluator grants any newly-earned achievements for a user/track.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string, slug track.Slug) error
}

// CompleteDayCommand contains the data to finalize one track day.
type CompleteDayCommand struct {
	// UserID is the ID of the user completing the day.
	UserID string

	// TrackSlug identifies the track.
	TrackSlug string

	// DayNumber is the 1-based day within the track.
	DayNumber int

	// Attributes is the user's personalization snapshot, captured by the
	// caller at request time.
	Attributes personalization.UserAttributes

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteDayCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("complete_day: user_id is required")
	}
	if _, err := track.ParseSlug(c.TrackSlug); err != nil {
		return fmt.Errorf("complete_day: invalid track slug %q: %w", c.TrackSlug, err)
	}
	if c.DayNumber < 1 {
		return fmt.Errorf("complete_day: day_number must be >= 1, got %d", c.DayNumber)
	}
	return nil
}

// CompleteDayResult contains the result of a day finalization.
type CompleteDayResult struct {
	// Success is true when this request finalized the day; false when the
	// day was already finalized.
	Success bool

	// PointsEarned is the day bonus awarded by this request (0 on no-op).
	PointsEarned int

	// NewDay is the user's current day after the request.
	NewDay int

	// NewStreak is the user's streak after the request.
	NewStreak int

	// NewLevel is the user's level after the request.
	NewLevel int

	// TotalPoints is the user's track total after the request.
	TotalPoints int

	// TrackCompleted is true when this finalization completed the track.
	TrackCompleted bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteDayHandler handles the CompleteDayCommand.
type CompleteDayHandler struct {
	catalog        *track.Catalog
	progressRepo   progress.Repository
	resolver       *personalization.Resolver
	achievements   AchievementEvaluator
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewCompleteDayHandler creates a new CompleteDayHandler.
// achievements may be nil; finalization then skips badge evaluation.
func NewCompleteDayHandler(
	catalog *track.Catalog,
	progressRepo progress.Repository,
	resolver *personalization.Resolver,
	achievements AchievementEvaluator,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *CompleteDayHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CompleteDayHandler{
		catalog:        catalog,
		progressRepo:   progressRepo,
		resolver:       resolver,
		achievements:   achievements,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("complete_day")),
	}
}

// Handle executes the complete day command.
func (h *CompleteDayHandler) Handle(ctx context.Context, cmd CompleteDayCommand) (*CompleteDayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "complete_day", shared.ErrValidation, err.Error(), err)
	}

	slug := track.Slug(cmd.TrackSlug)
	def, err := h.catalog.Get(slug)
	if err != nil {
		return nil, shared.WrapError("progress", "complete_day", shared.ErrValidation,
			fmt.Sprintf("unknown track %q", cmd.TrackSlug), err)
	}
	if !def.ContainsDay(cmd.DayNumber) {
		return nil, shared.NewDomainError("progress", "complete_day", shared.ErrValidation,
			fmt.Sprintf("day %d is outside track %s (1-%d)", cmd.DayNumber, slug, def.DurationDays))
	}

	prog, err := h.progressRepo.GetProgress(ctx, cmd.UserID, slug)
	if err != nil {
		return nil, fmt.Errorf("complete_day: load progress: %w", err)
	}
	if !prog.IsActive {
		return nil, shared.WrapError("progress", "complete_day", shared.ErrInvalidState,
			fmt.Sprintf("track %s is inactive for user %s", slug, cmd.UserID), progress.ErrTrackInactive)
	}
	if !prog.HasReachedDay(cmd.DayNumber) {
		return nil, shared.NewDomainError("progress", "complete_day", shared.ErrValidation,
			fmt.Sprintf("day %d is not yet reachable, current day is %d", cmd.DayNumber, prog.CurrentDay))
	}

	// A day already behind the user, or already finalized, is a safe no-op.
	finalized, err := h.progressRepo.IsDayFinalized(ctx, cmd.UserID, slug, cmd.DayNumber)
	if err != nil {
		return nil, fmt.Errorf("complete_day: check finalization: %w", err)
	}
	if finalized || prog.CurrentDay > cmd.DayNumber {
		return h.noopResult(prog), nil
	}

	resolved, err := h.resolver.Resolve(ctx, slug, cmd.DayNumber, cmd.Attributes)
	if err != nil {
		return nil, fmt.Errorf("complete_day: resolve day content: %w", err)
	}

	if missing, err := h.missingRequired(ctx, cmd, slug, resolved.Template); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, shared.NewDomainError("progress", "complete_day", shared.ErrIncompleteDay,
			fmt.Sprintf("required activities not completed for %s day %d: %v", slug, cmd.DayNumber, missing))
	}

	now := time.Now().UTC()
	newStreak, wasReset := prog.NextStreak(now)
	newCurrentDay := prog.NextCurrentDay(cmd.DayNumber, def)

	finalization := &progress.DayFinalization{
		UserID:      cmd.UserID,
		TrackSlug:   slug,
		DayNumber:   cmd.DayNumber,
		BonusPoints: resolved.Template.MaxPoints,
		FinalizedAt: now,
	}

	outcome, err := h.progressRepo.FinalizeDay(ctx, finalization, newStreak, newCurrentDay, def.LevelPointQuantum)
	if err != nil {
		return nil, fmt.Errorf("complete_day: finalize: %w", err)
	}
	if !outcome.Applied {
		// Lost a concurrent race for the same day; the winner took the award.
		return h.noopResult(outcome.Progress), nil
	}

	result := &CompleteDayResult{
		Success:        true,
		PointsEarned:   finalization.BonusPoints,
		NewDay:         outcome.Progress.CurrentDay,
		NewStreak:      outcome.Progress.StreakDays,
		NewLevel:       outcome.Progress.LevelNumber,
		TotalPoints:    outcome.Progress.TotalPoints,
		TrackCompleted: outcome.Progress.HasCompletedTrack(def),
		Events:         make([]shared.Event, 0),
	}

	h.publishEvents(cmd, prog, outcome.Progress, newStreak, wasReset, result)

	if h.achievements != nil {
		if err := h.achievements.Evaluate(ctx, cmd.UserID, slug); err != nil {
			h.log.Warn("achievement evaluation failed after day finalization",
				logger.UserID(cmd.UserID),
				logger.Track(slug.String()),
				logger.Day(cmd.DayNumber),
				logger.Err(err))
		}
	}

	return result, nil
}

// missingRequired returns the required activity indexes of the resolved day
// that have no completion row, sorted ascending.
func (h *CompleteDayHandler) missingRequired(ctx context.Context, cmd CompleteDayCommand, slug track.Slug, tpl *track.DailyTemplate) ([]int, error) {
	required := tpl.RequiredIndexes()
	if len(required) == 0 {
		return nil, nil
	}

	completions, err := h.progressRepo.ListDayCompletions(ctx, cmd.UserID, slug, cmd.DayNumber)
	if err != nil {
		return nil, fmt.Errorf("complete_day: list day completions: %w", err)
	}

	done := make(map[int]bool, len(completions))
	for _, c := range completions {
		done[c.ActivityIndex] = true
	}

	var missing []int
	for _, idx := range required {
		if !done[idx] {
			missing = append(missing, idx)
		}
	}
	sort.Ints(missing)
	return missing, nil
}

// noopResult reports an already-finalized day without re-awarding anything.
func (h *CompleteDayHandler) noopResult(prog *progress.UserTrackProgress) *CompleteDayResult {
	return &CompleteDayResult{
		Success:     false,
		NewDay:      prog.CurrentDay,
		NewStreak:   prog.StreakDays,
		NewLevel:    prog.LevelNumber,
		TotalPoints: prog.TotalPoints,
		Events:      make([]shared.Event, 0),
	}
}

func (h *CompleteDayHandler) publishEvents(
	cmd CompleteDayCommand,
	before, after *progress.UserTrackProgress,
	newStreak int,
	wasReset bool,
	result *CompleteDayResult,
) {
	publish := func(e shared.Event) {
		result.Events = append(result.Events, e)
		_ = h.eventPublisher.Publish(e)
	}

	dayEvent := shared.NewDayCompletedEvent(
		cmd.UserID, cmd.TrackSlug, cmd.DayNumber,
		result.PointsEarned, after.CurrentDay, after.StreakDays, after.LevelNumber,
	)
	if cmd.CorrelationID != "" {
		dayEvent.BaseEvent = dayEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(dayEvent)

	streakEvent := shared.NewStreakUpdatedEvent(cmd.UserID, cmd.TrackSlug, newStreak, wasReset)
	publish(streakEvent)

	if after.LevelNumber > before.LevelNumber {
		publish(shared.NewLevelUpEvent(cmd.UserID, cmd.TrackSlug, before.LevelNumber, after.LevelNumber))
	}
	if result.TrackCompleted {
		publish(shared.NewTrackCompletedEvent(cmd.UserID, cmd.TrackSlug, after.TotalPoints))
	}
}
