package personalization

import (
	"context"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSONALIZATION RULE
// A conditional override applied to a daily template. Rules are authored
// externally and read-only to the engine.
// ══════════════════════════════════════════════════════════════════════════════

// Rule is one conditional override for a (track, day) pair.
type Rule struct {
	// ID uniquely identifies the rule. Used as the final deterministic
	// tie-break between otherwise equal rules.
	ID string

	// TrackSlug and DayNumber scope the rule.
	TrackSlug track.Slug
	DayNumber int

	// Condition decides whether the rule applies to a user.
	Condition Predicate

	// Priority breaks ties between rules of equal specificity.
	// Higher wins.
	Priority int

	// Overrides are shallow-merged onto the base template when the rule wins.
	Overrides Overrides
}

// Overrides holds the template fields a rule may replace. Zero values mean
// "keep the base value"; Activities replaces the whole list when non-nil.
type Overrides struct {
	Title             string           `json:"title,omitempty"`
	Objective         string           `json:"objective,omitempty"`
	Devotional        string           `json:"devotional,omitempty"`
	MainActivity      string           `json:"main_activity,omitempty"`
	ChallengeActivity string           `json:"challenge_activity,omitempty"`
	BonusActivity     string           `json:"bonus_activity,omitempty"`
	MaxPoints         *int             `json:"max_points,omitempty"`
	Activities        []track.Activity `json:"activities,omitempty"`
}

// IsEmpty reports whether the overrides would change nothing.
func (o Overrides) IsEmpty() bool {
	return o.Title == "" && o.Objective == "" && o.Devotional == "" &&
		o.MainActivity == "" && o.ChallengeActivity == "" && o.BonusActivity == "" &&
		o.MaxPoints == nil && o.Activities == nil
}

// ApplyTo shallow-merges the overrides onto a copy of the base template.
func (o Overrides) ApplyTo(base *track.DailyTemplate) *track.DailyTemplate {
	merged := *base
	if o.Title != "" {
		merged.Title = o.Title
	}
	if o.Objective != "" {
		merged.Objective = o.Objective
	}
	if o.Devotional != "" {
		merged.Devotional = o.Devotional
	}
	if o.MainActivity != "" {
		merged.MainActivity = o.MainActivity
	}
	if o.ChallengeActivity != "" {
		merged.ChallengeActivity = o.ChallengeActivity
	}
	if o.BonusActivity != "" {
		merged.BonusActivity = o.BonusActivity
	}
	if o.MaxPoints != nil {
		merged.MaxPoints = *o.MaxPoints
	}
	if o.Activities != nil {
		merged.Activities = o.Activities
	}
	return &merged
}

// ══════════════════════════════════════════════════════════════════════════════
// RULE STORE
// ══════════════════════════════════════════════════════════════════════════════

// RuleStore provides read access to personalization rules.
type RuleStore interface {
	// GetRules returns all rules for (slug, day). An empty slice, never an
	// error, when no rules are authored.
	GetRules(ctx context.Context, slug track.Slug, day int) ([]Rule, error)
}
