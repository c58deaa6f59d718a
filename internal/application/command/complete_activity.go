// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE ACTIVITY COMMAND
// Records one activity completion and awards its points. The award is
// at-most-once: the store's conditional insert is the only idempotence
// mechanism, so a duplicate or concurrent request degrades to a harmless
// no-op that reports the already-recorded state.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityCommand contains the data to complete one activity.
type CompleteActivityCommand struct {
	// UserID is the ID of the user completing the activity.
	UserID string

	// TrackSlug identifies the track.
	TrackSlug string

	// DayNumber is the 1-based day within the track.
	DayNumber int

	// ActivityIndex is the 0-based index into the day's activity list.
	ActivityIndex int

	// Attributes is the user's personalization snapshot, captured by the
	// caller at request time.
	Attributes personalization.UserAttributes

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteActivityCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("complete_activity: user_id is required")
	}
	if _, err := track.ParseSlug(c.TrackSlug); err != nil {
		return fmt.Errorf("complete_activity: invalid track slug %q: %w", c.TrackSlug, err)
	}
	if c.DayNumber < 1 {
		return fmt.Errorf("complete_activity: day_number must be >= 1, got %d", c.DayNumber)
	}
	if c.ActivityIndex < 0 {
		return fmt.Errorf("complete_activity: activity_index must be >= 0, got %d", c.ActivityIndex)
	}
	return nil
}

// CompleteActivityResult contains the result of an activity completion.
type CompleteActivityResult struct {
	// Accepted is true when this request produced the completion; false when
	// the activity was already completed.
	Accepted bool

	// CompletionID is the ID of the recorded completion row.
	CompletionID string

	// PointsEarned is the points recorded for this activity. A duplicate
	// request reports the prior row's points, identical to the original.
	PointsEarned int

	// TotalPoints is the user's track total after the request.
	TotalPoints int

	// LevelNumber is the user's level after the request.
	LevelNumber int

	// LeveledUp is true when this completion crossed a level threshold.
	LeveledUp bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityHandler handles the CompleteActivityCommand.
type CompleteActivityHandler struct {
	catalog        *track.Catalog
	progressRepo   progress.Repository
	resolver       *personalization.Resolver
	eventPublisher shared.EventPublisher
}

// NewCompleteActivityHandler creates a new CompleteActivityHandler.
func NewCompleteActivityHandler(
	catalog *track.Catalog,
	progressRepo progress.Repository,
	resolver *personalization.Resolver,
	eventPublisher shared.EventPublisher,
) *CompleteActivityHandler {
	return &CompleteActivityHandler{
		catalog:        catalog,
		progressRepo:   progressRepo,
		resolver:       resolver,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the complete activity command.
func (h *CompleteActivityHandler) Handle(ctx context.Context, cmd CompleteActivityCommand) (*CompleteActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "complete_activity", shared.ErrValidation, err.Error(), err)
	}

	slug := track.Slug(cmd.TrackSlug)
	def, err := h.catalog.Get(slug)
	if err != nil {
		return nil, shared.WrapError("progress", "complete_activity", shared.ErrValidation,
			fmt.Sprintf("unknown track %q", cmd.TrackSlug), err)
	}
	if !def.ContainsDay(cmd.DayNumber) {
		return nil, shared.NewDomainError("progress", "complete_activity", shared.ErrValidation,
			fmt.Sprintf("day %d is outside track %s (1-%d)", cmd.DayNumber, slug, def.DurationDays))
	}

	prog, err := h.loadOrEnroll(ctx, cmd.UserID, slug)
	if err != nil {
		return nil, err
	}
	if !prog.IsActive {
		return nil, shared.WrapError("progress", "complete_activity", shared.ErrInvalidState,
			fmt.Sprintf("track %s is inactive for user %s", slug, cmd.UserID), progress.ErrTrackInactive)
	}
	if !prog.HasReachedDay(cmd.DayNumber) {
		return nil, shared.NewDomainError("progress", "complete_activity", shared.ErrValidation,
			fmt.Sprintf("day %d is not yet reachable, current day is %d", cmd.DayNumber, prog.CurrentDay))
	}

	resolved, err := h.resolver.Resolve(ctx, slug, cmd.DayNumber, cmd.Attributes)
	if err != nil {
		return nil, fmt.Errorf("complete_activity: resolve day content: %w", err)
	}

	activity, err := resolved.Template.ActivityAt(cmd.ActivityIndex)
	if err != nil {
		return nil, shared.WrapError("progress", "complete_activity", shared.ErrValidation,
			fmt.Sprintf("activity index %d does not exist on %s day %d", cmd.ActivityIndex, slug, cmd.DayNumber), err)
	}

	completion := &progress.ActivityCompletion{
		ID:            uuid.NewString(),
		UserID:        cmd.UserID,
		TrackSlug:     slug,
		DayNumber:     cmd.DayNumber,
		ActivityIndex: cmd.ActivityIndex,
		PointsEarned:  activity.Points,
		CompletedAt:   time.Now().UTC(),
	}

	outcome, err := h.progressRepo.RecordCompletion(ctx, completion, def.LevelPointQuantum)
	if err != nil {
		return nil, fmt.Errorf("complete_activity: record completion: %w", err)
	}

	// On a duplicate the store hands back the existing row, so the caller
	// sees the same completion id and points as the original request.
	result := &CompleteActivityResult{
		Accepted:     outcome.Accepted,
		CompletionID: outcome.Completion.ID,
		PointsEarned: outcome.Completion.PointsEarned,
		TotalPoints:  outcome.Progress.TotalPoints,
		LevelNumber:  outcome.Progress.LevelNumber,
		Events:       make([]shared.Event, 0),
	}
	if !outcome.Accepted {
		return result, nil
	}

	result.LeveledUp = outcome.Progress.LevelNumber > prog.LevelNumber

	event := shared.NewActivityCompletedEvent(cmd.UserID, slug.String(), cmd.DayNumber, cmd.ActivityIndex, result.PointsEarned)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)

	if result.LeveledUp {
		levelEvent := shared.NewLevelUpEvent(cmd.UserID, slug.String(), prog.LevelNumber, outcome.Progress.LevelNumber)
		if cmd.CorrelationID != "" {
			levelEvent.BaseEvent = levelEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, levelEvent)
		_ = h.eventPublisher.Publish(levelEvent)
	}

	return result, nil
}

// loadOrEnroll returns the user's progress aggregate, creating it on first
// contact with the track. A create/create race is resolved by the store's
// unique constraint; the loser re-reads the winner's row.
func (h *CompleteActivityHandler) loadOrEnroll(ctx context.Context, userID string, slug track.Slug) (*progress.UserTrackProgress, error) {
	prog, err := h.progressRepo.GetProgress(ctx, userID, slug)
	if err == nil {
		return prog, nil
	}
	if !errors.Is(err, progress.ErrProgressNotFound) {
		return nil, fmt.Errorf("complete_activity: load progress: %w", err)
	}

	fresh, err := progress.NewUserTrackProgress(userID, slug)
	if err != nil {
		return nil, shared.WrapError("progress", "complete_activity", shared.ErrValidation, err.Error(), err)
	}

	createErr := h.progressRepo.CreateProgress(ctx, fresh)
	switch {
	case createErr == nil:
		event := shared.NewBaseEvent(shared.EventTrackStarted, userID)
		_ = h.eventPublisher.Publish(trackStartedEvent{BaseEvent: event, TrackSlug: slug.String()})
		return fresh, nil
	case errors.Is(createErr, progress.ErrAlreadyEnrolled):
		prog, err = h.progressRepo.GetProgress(ctx, userID, slug)
		if err != nil {
			return nil, fmt.Errorf("complete_activity: reload progress after enroll race: %w", err)
		}
		return prog, nil
	default:
		return nil, fmt.Errorf("complete_activity: enroll: %w", createErr)
	}
}

// trackStartedEvent marks a user's first contact with a track.
type trackStartedEvent struct {
	shared.BaseEvent
	TrackSlug string
}

// Payload returns the event payload for serialization.
func (e trackStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.AggregateID(),
		"track_slug": e.TrackSlug,
	}
}
