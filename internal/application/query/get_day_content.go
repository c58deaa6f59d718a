// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAY CONTENT QUERY
// Returns the effective content for one track day as seen by one user.
// Pure read: resolution never writes and is deterministic for identical
// (track, day, attributes) inputs.
// ══════════════════════════════════════════════════════════════════════════════

// GetDayContentQuery contains the parameters for a content resolution.
type GetDayContentQuery struct {
	// UserID identifies the user (for logging and tracing only; resolution
	// depends solely on Attributes).
	UserID string

	// TrackSlug identifies the track.
	TrackSlug string

	// DayNumber is the 1-based day within the track.
	DayNumber int

	// Attributes is the user's personalization snapshot.
	Attributes personalization.UserAttributes
}

// Validate validates the query parameters.
func (q GetDayContentQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_day_content: user_id is required")
	}
	if _, err := track.ParseSlug(q.TrackSlug); err != nil {
		return fmt.Errorf("get_day_content: invalid track slug %q: %w", q.TrackSlug, err)
	}
	if q.DayNumber < 1 {
		return fmt.Errorf("get_day_content: day_number must be >= 1, got %d", q.DayNumber)
	}
	return nil
}

// DayContentDTO is the resolved content of one track day.
type DayContentDTO struct {
	TrackSlug      string           `json:"track_slug"`
	DayNumber      int              `json:"day_number"`
	Title          string           `json:"title"`
	Objective      string           `json:"objective"`
	Devotional     string           `json:"devotional"`
	MainActivity   string           `json:"main_activity"`
	Challenge      string           `json:"challenge_activity"`
	BonusActivity  string           `json:"bonus_activity"`
	MaxPoints      int              `json:"max_points"`
	Activities     []track.Activity `json:"activities"`
	Personalized   bool             `json:"personalized"`
	AppliedRuleIDs []string         `json:"applied_rule_ids,omitempty"`
	TrackComplete  bool             `json:"track_complete"`
}

// GetDayContentHandler handles the GetDayContentQuery.
type GetDayContentHandler struct {
	resolver *personalization.Resolver
}

// NewGetDayContentHandler creates a new GetDayContentHandler.
func NewGetDayContentHandler(resolver *personalization.Resolver) *GetDayContentHandler {
	return &GetDayContentHandler{resolver: resolver}
}

// Handle executes the query.
func (h *GetDayContentHandler) Handle(ctx context.Context, q GetDayContentQuery) (*DayContentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("personalization", "get_day_content", shared.ErrValidation, err.Error(), err)
	}

	resolved, err := h.resolver.Resolve(ctx, track.Slug(q.TrackSlug), q.DayNumber, q.Attributes)
	if err != nil {
		return nil, fmt.Errorf("get_day_content: %w", err)
	}

	return newDayContentDTO(resolved), nil
}

// newDayContentDTO maps a resolved day onto the transport shape. Shared with
// the track state query, which embeds the current day's content.
func newDayContentDTO(resolved *personalization.ResolvedDay) *DayContentDTO {
	tpl := resolved.Template
	return &DayContentDTO{
		TrackSlug:      tpl.TrackSlug.String(),
		DayNumber:      tpl.DayNumber,
		Title:          tpl.Title,
		Objective:      tpl.Objective,
		Devotional:     tpl.Devotional,
		MainActivity:   tpl.MainActivity,
		Challenge:      tpl.ChallengeActivity,
		BonusActivity:  tpl.BonusActivity,
		MaxPoints:      tpl.MaxPoints,
		Activities:     tpl.Activities,
		Personalized:   resolved.Personalized,
		AppliedRuleIDs: resolved.AppliedRuleIDs,
		TrackComplete:  resolved.TrackComplete,
	}
}
