package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNCOMPLETE ACTIVITY COMMAND
// Reverses a recorded activity completion and claws back its points. Only
// allowed while the owning day is not finalized; after finalization the
// day's rows are immutable.
// ══════════════════════════════════════════════════════════════════════════════

// UncompleteActivityCommand contains the data to reverse one completion.
type UncompleteActivityCommand struct {
	// UserID is the ID of the user reversing the activity.
	UserID string

	// TrackSlug identifies the track.
	TrackSlug string

	// DayNumber is the 1-based day within the track.
	DayNumber int

	// ActivityIndex is the 0-based index into the day's activity list.
	ActivityIndex int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UncompleteActivityCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("uncomplete_activity: user_id is required")
	}
	if _, err := track.ParseSlug(c.TrackSlug); err != nil {
		return fmt.Errorf("uncomplete_activity: invalid track slug %q: %w", c.TrackSlug, err)
	}
	if c.DayNumber < 1 {
		return fmt.Errorf("uncomplete_activity: day_number must be >= 1, got %d", c.DayNumber)
	}
	if c.ActivityIndex < 0 {
		return fmt.Errorf("uncomplete_activity: activity_index must be >= 0, got %d", c.ActivityIndex)
	}
	return nil
}

// UncompleteActivityResult contains the result of a reversal.
type UncompleteActivityResult struct {
	// TotalPoints is the user's track total after the reversal.
	TotalPoints int

	// LevelNumber is the user's level after the reversal.
	LevelNumber int

	// Events contains domain events generated.
	Events []shared.Event
}

// UncompleteActivityHandler handles the UncompleteActivityCommand.
type UncompleteActivityHandler struct {
	catalog        *track.Catalog
	progressRepo   progress.Repository
	eventPublisher shared.EventPublisher
}

// NewUncompleteActivityHandler creates a new UncompleteActivityHandler.
func NewUncompleteActivityHandler(
	catalog *track.Catalog,
	progressRepo progress.Repository,
	eventPublisher shared.EventPublisher,
) *UncompleteActivityHandler {
	return &UncompleteActivityHandler{
		catalog:        catalog,
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the uncomplete activity command.
func (h *UncompleteActivityHandler) Handle(ctx context.Context, cmd UncompleteActivityCommand) (*UncompleteActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "uncomplete_activity", shared.ErrValidation, err.Error(), err)
	}

	slug := track.Slug(cmd.TrackSlug)
	def, err := h.catalog.Get(slug)
	if err != nil {
		return nil, shared.WrapError("progress", "uncomplete_activity", shared.ErrValidation,
			fmt.Sprintf("unknown track %q", cmd.TrackSlug), err)
	}

	key := progress.CompletionKey{
		UserID:        cmd.UserID,
		TrackSlug:     slug,
		DayNumber:     cmd.DayNumber,
		ActivityIndex: cmd.ActivityIndex,
	}
	if err := h.progressRepo.ReverseCompletion(ctx, key, def.LevelPointQuantum); err != nil {
		return nil, fmt.Errorf("uncomplete_activity: reverse: %w", err)
	}

	prog, err := h.progressRepo.GetProgress(ctx, cmd.UserID, slug)
	if err != nil {
		return nil, fmt.Errorf("uncomplete_activity: reload progress: %w", err)
	}

	event := reversalEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventActivityReversed, cmd.UserID),
		TrackSlug:     cmd.TrackSlug,
		DayNumber:     cmd.DayNumber,
		ActivityIndex: cmd.ActivityIndex,
	}
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &UncompleteActivityResult{
		TotalPoints: prog.TotalPoints,
		LevelNumber: prog.LevelNumber,
		Events:      []shared.Event{event},
	}, nil
}

// reversalEvent records an activity completion being undone.
type reversalEvent struct {
	shared.BaseEvent
	TrackSlug     string
	DayNumber     int
	ActivityIndex int
}

// Payload returns the event payload for serialization.
func (e reversalEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.AggregateID(),
		"track_slug":     e.TrackSlug,
		"day_number":     e.DayNumber,
		"activity_index": e.ActivityIndex,
	}
}
