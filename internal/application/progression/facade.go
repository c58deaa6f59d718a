// Package progression exposes the engine's single entry surface. Interface
// adapters (HTTP, jobs) talk to the Facade and never to the handlers or the
// stores directly, so engine semantics stay in one place.
package progression

import (
	"context"

	"github.com/equilibrio-app/equilibrio-engine/internal/application/command"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/query"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT CODES
// Stable, transport-agnostic outcome codes. Adapters map these to their own
// status spaces (HTTP statuses, job retry policies) without inspecting
// error chains.
// ══════════════════════════════════════════════════════════════════════════════

// Code classifies the outcome of a facade call.
type Code string

const (
	// CodeOK - the operation succeeded and changed state (or read it).
	CodeOK Code = "ok"

	// CodeAlreadyCompleted - a duplicate award request; nothing changed.
	CodeAlreadyCompleted Code = "already_completed"

	// CodeIncompleteDay - required activities are missing; nothing changed.
	CodeIncompleteDay Code = "incomplete_day"

	// CodeInvalidArgument - the request itself is malformed or out of range.
	CodeInvalidArgument Code = "invalid_argument"

	// CodeNotFound - the referenced progress or content does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict - the state does not admit the operation (inactive track,
	// finalized day).
	CodeConflict Code = "conflict"

	// CodeUnavailable - a collaborator (store, cache) is down; retryable.
	CodeUnavailable Code = "unavailable"

	// CodeInternal - unclassified failure.
	CodeInternal Code = "internal"
)

// codeFor maps an error chain to a result code.
func codeFor(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case shared.IsIncompleteDay(err):
		return CodeIncompleteDay
	case shared.IsAlreadyExists(err) || shared.IsAlreadyProcessed(err):
		return CodeAlreadyCompleted
	case shared.IsValidation(err):
		return CodeInvalidArgument
	case shared.IsNotFound(err):
		return CodeNotFound
	case shared.IsConcurrencyConflict(err), shared.IsImmutable(err), shared.IsInvalidState(err):
		return CodeConflict
	case shared.IsStorageUnavailable(err):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FACADE
// ══════════════════════════════════════════════════════════════════════════════

// AttributeProvider supplies the personalization snapshot for a user.
// Implementations live in infrastructure (profile service client).
type AttributeProvider interface {
	GetAttributes(ctx context.Context, userID string) (personalization.UserAttributes, error)
}

// EmptyAttributeProvider always returns an empty snapshot. Used when the
// profile service is not configured; resolution then yields base content.
type EmptyAttributeProvider struct{}

// GetAttributes implements AttributeProvider.
func (EmptyAttributeProvider) GetAttributes(context.Context, string) (personalization.UserAttributes, error) {
	return personalization.UserAttributes{}, nil
}

// Facade is the engine's single entry point.
type Facade struct {
	completeActivity   *command.CompleteActivityHandler
	completeDay        *command.CompleteDayHandler
	uncompleteActivity *command.UncompleteActivityHandler
	dayContent         *query.GetDayContentHandler
	trackState         *query.GetTrackStateHandler
	attributes         AttributeProvider
	log                *logger.Logger
}

// NewFacade creates a Facade. attributes may be nil; personalization then
// always sees an empty snapshot.
func NewFacade(
	completeActivity *command.CompleteActivityHandler,
	completeDay *command.CompleteDayHandler,
	uncompleteActivity *command.UncompleteActivityHandler,
	dayContent *query.GetDayContentHandler,
	trackState *query.GetTrackStateHandler,
	attributes AttributeProvider,
	log *logger.Logger,
) *Facade {
	if attributes == nil {
		attributes = EmptyAttributeProvider{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Facade{
		completeActivity:   completeActivity,
		completeDay:        completeDay,
		uncompleteActivity: uncompleteActivity,
		dayContent:         dayContent,
		trackState:         trackState,
		attributes:         attributes,
		log:                log.With(logger.Component("progression_facade")),
	}
}

// attributesFor fetches the user's snapshot. Profile outages degrade to an
// empty snapshot so progression keeps working with base content.
func (f *Facade) attributesFor(ctx context.Context, userID string) personalization.UserAttributes {
	attrs, err := f.attributes.GetAttributes(ctx, userID)
	if err != nil {
		f.log.Warn("attribute fetch failed, using empty snapshot",
			logger.UserID(userID), logger.Err(err))
		return personalization.UserAttributes{}
	}
	return attrs
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

// CompleteActivityResponse is the facade result of an activity completion.
type CompleteActivityResponse struct {
	Code         Code   `json:"code"`
	Error        string `json:"error,omitempty"`
	Accepted     bool   `json:"accepted"`
	PointsEarned int    `json:"points_earned"`
	TotalPoints  int    `json:"total_points"`
	LevelNumber  int    `json:"level_number"`
	LeveledUp    bool   `json:"leveled_up"`
}

// CompleteActivity records one activity completion for a user.
func (f *Facade) CompleteActivity(ctx context.Context, userID, trackSlug string, dayNumber, activityIndex int) CompleteActivityResponse {
	result, err := f.completeActivity.Handle(ctx, command.CompleteActivityCommand{
		UserID:        userID,
		TrackSlug:     trackSlug,
		DayNumber:     dayNumber,
		ActivityIndex: activityIndex,
		Attributes:    f.attributesFor(ctx, userID),
		CorrelationID: logger.RequestIDFromContext(ctx),
	})
	if err != nil {
		return CompleteActivityResponse{Code: codeFor(err), Error: err.Error()}
	}

	code := CodeOK
	if !result.Accepted {
		code = CodeAlreadyCompleted
	}
	return CompleteActivityResponse{
		Code:         code,
		Accepted:     result.Accepted,
		PointsEarned: result.PointsEarned,
		TotalPoints:  result.TotalPoints,
		LevelNumber:  result.LevelNumber,
		LeveledUp:    result.LeveledUp,
	}
}

// CompleteDayResponse is the facade result of a day finalization.
type CompleteDayResponse struct {
	Code           Code   `json:"code"`
	Error          string `json:"error,omitempty"`
	Success        bool   `json:"success"`
	PointsEarned   int    `json:"points_earned"`
	NewDay         int    `json:"new_day"`
	NewStreak      int    `json:"new_streak"`
	NewLevel       int    `json:"new_level"`
	TotalPoints    int    `json:"total_points"`
	TrackCompleted bool   `json:"track_completed"`
}

// CompleteDay finalizes one track day for a user.
func (f *Facade) CompleteDay(ctx context.Context, userID, trackSlug string, dayNumber int) CompleteDayResponse {
	result, err := f.completeDay.Handle(ctx, command.CompleteDayCommand{
		UserID:        userID,
		TrackSlug:     trackSlug,
		DayNumber:     dayNumber,
		Attributes:    f.attributesFor(ctx, userID),
		CorrelationID: logger.RequestIDFromContext(ctx),
	})
	if err != nil {
		return CompleteDayResponse{Code: codeFor(err), Error: err.Error()}
	}

	code := CodeOK
	if !result.Success {
		code = CodeAlreadyCompleted
	}
	return CompleteDayResponse{
		Code:           code,
		Success:        result.Success,
		PointsEarned:   result.PointsEarned,
		NewDay:         result.NewDay,
		NewStreak:      result.NewStreak,
		NewLevel:       result.NewLevel,
		TotalPoints:    result.TotalPoints,
		TrackCompleted: result.TrackCompleted,
	}
}

// UncompleteActivityResponse is the facade result of a reversal.
type UncompleteActivityResponse struct {
	Code        Code   `json:"code"`
	Error       string `json:"error,omitempty"`
	TotalPoints int    `json:"total_points"`
	LevelNumber int    `json:"level_number"`
}

// UncompleteActivity reverses a not-yet-finalized activity completion.
func (f *Facade) UncompleteActivity(ctx context.Context, userID, trackSlug string, dayNumber, activityIndex int) UncompleteActivityResponse {
	result, err := f.uncompleteActivity.Handle(ctx, command.UncompleteActivityCommand{
		UserID:        userID,
		TrackSlug:     trackSlug,
		DayNumber:     dayNumber,
		ActivityIndex: activityIndex,
		CorrelationID: logger.RequestIDFromContext(ctx),
	})
	if err != nil {
		return UncompleteActivityResponse{Code: codeFor(err), Error: err.Error()}
	}
	return UncompleteActivityResponse{
		Code:        CodeOK,
		TotalPoints: result.TotalPoints,
		LevelNumber: result.LevelNumber,
	}
}

// DayContentResponse is the facade result of a content resolution.
type DayContentResponse struct {
	Code    Code                `json:"code"`
	Error   string              `json:"error,omitempty"`
	Content *query.DayContentDTO `json:"content,omitempty"`
}

// GetDayContent resolves the effective content a user sees for a track day.
func (f *Facade) GetDayContent(ctx context.Context, userID, trackSlug string, dayNumber int) DayContentResponse {
	content, err := f.dayContent.Handle(ctx, query.GetDayContentQuery{
		UserID:     userID,
		TrackSlug:  trackSlug,
		DayNumber:  dayNumber,
		Attributes: f.attributesFor(ctx, userID),
	})
	if err != nil {
		return DayContentResponse{Code: codeFor(err), Error: err.Error()}
	}
	return DayContentResponse{Code: CodeOK, Content: content}
}

// TrackStateResponse is the facade result of a track state read.
type TrackStateResponse struct {
	Code  Code                `json:"code"`
	Error string              `json:"error,omitempty"`
	State *query.TrackStateDTO `json:"state,omitempty"`
}

// GetTrackState returns a user's full progression state on one track.
func (f *Facade) GetTrackState(ctx context.Context, userID, trackSlug string) TrackStateResponse {
	state, err := f.trackState.Handle(ctx, query.GetTrackStateQuery{
		UserID:     userID,
		TrackSlug:  trackSlug,
		Attributes: f.attributesFor(ctx, userID),
	})
	if err != nil {
		return TrackStateResponse{Code: codeFor(err), Error: err.Error()}
	}
	return TrackStateResponse{Code: CodeOK, State: state}
}
