package track

import (
	"context"
	"fmt"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CONTENT TEMPLATE
// The canonical content and activity list for a track day, before any
// personalization is applied.
// ══════════════════════════════════════════════════════════════════════════════

// Activity is an individually completable unit within a day.
type Activity struct {
	// Title is the short display title of the activity.
	Title string `json:"title"`

	// Description explains what the user has to do.
	Description string `json:"description"`

	// Points earned when the activity is completed.
	Points int `json:"points"`

	// Required activities gate day completion; optional ones do not.
	Required bool `json:"required"`
}

// DailyTemplate is the authored content for one (track, day) pair.
type DailyTemplate struct {
	// TrackSlug and DayNumber identify the template.
	TrackSlug Slug
	DayNumber int

	// Title and Objective head the day screen.
	Title     string
	Objective string

	// Devotional is the reflective reading of the day.
	Devotional string

	// MainActivity, ChallengeActivity and BonusActivity are the prose
	// descriptions of the day's three content blocks.
	MainActivity      string
	ChallengeActivity string
	BonusActivity     string

	// MaxPoints is the bonus awarded when the day is finalized.
	MaxPoints int

	// Activities is the ordered activity list; activity_index refers to
	// positions in this slice.
	Activities []Activity
}

// ActivityAt returns the activity at index, or an error when out of range.
func (t *DailyTemplate) ActivityAt(index int) (Activity, error) {
	if index < 0 || index >= len(t.Activities) {
		return Activity{}, shared.NewDomainError("track", "ActivityAt", shared.ErrValueOutOfRange,
			fmt.Sprintf("activity index %d outside [0, %d)", index, len(t.Activities)))
	}
	return t.Activities[index], nil
}

// RequiredIndexes returns the indexes of all required activities.
func (t *DailyTemplate) RequiredIndexes() []int {
	var required []int
	for i, a := range t.Activities {
		if a.Required {
			required = append(required, i)
		}
	}
	return required
}

// NewGenericStub synthesizes a minimal template for a day with no authored
// content. Content must always render, so a missing template is never fatal.
func NewGenericStub(slug Slug, day int) *DailyTemplate {
	return &DailyTemplate{
		TrackSlug:  slug,
		DayNumber:  day,
		Title:      fmt.Sprintf("Día %d", day),
		Objective:  "Continúa tu proceso de cambio.",
		Devotional: "Tómate un momento para reflexionar sobre tu progreso.",
		MaxPoints:  0,
		Activities: nil,
	}
}

// ErrTemplateNotFound is returned by repositories when no template is
// authored for a (track, day) pair. Callers degrade to NewGenericStub.
var ErrTemplateNotFound = shared.NewDomainError("track", "GetDailyTemplate", shared.ErrNotFound,
	"daily template not found")

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT REPOSITORY
// Read-only source of authored daily templates. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository provides read access to authored daily templates.
type ContentRepository interface {
	// GetDailyTemplate returns the template for (slug, day).
	// Returns ErrTemplateNotFound when no content is authored for that day.
	GetDailyTemplate(ctx context.Context, slug Slug, day int) (*DailyTemplate, error)
}
