package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT REPOSITORY IMPLEMENTATION
// Daily templates and personalization rules are authored externally and
// read-only to the engine; this layer only reads them.
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository implements track.ContentRepository and
// personalization.RuleStore for PostgreSQL.
type ContentRepository struct {
	conn *Connection
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(conn *Connection) *ContentRepository {
	return &ContentRepository{conn: conn}
}

// GetDailyTemplate returns the authored template for (slug, day).
// Returns track.ErrTemplateNotFound when no row exists.
func (r *ContentRepository) GetDailyTemplate(ctx context.Context, slug track.Slug, day int) (*track.DailyTemplate, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT track_slug, day_number, title, objective, devotional,
		       main_activity, challenge_activity, bonus_activity, max_points, activities
		FROM daily_templates
		WHERE track_slug = $1 AND day_number = $2
	`, slug.String(), day)

	var tpl track.DailyTemplate
	var slugStr string
	var activitiesJSON []byte

	err := row.Scan(
		&slugStr, &tpl.DayNumber, &tpl.Title, &tpl.Objective, &tpl.Devotional,
		&tpl.MainActivity, &tpl.ChallengeActivity, &tpl.BonusActivity, &tpl.MaxPoints, &activitiesJSON,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, track.ErrTemplateNotFound
		}
		return nil, storageErr("GetDailyTemplate", err)
	}

	tpl.TrackSlug = track.Slug(slugStr)
	if len(activitiesJSON) > 0 {
		if err := json.Unmarshal(activitiesJSON, &tpl.Activities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activities for %s day %d: %w", slug, day, err)
		}
	}
	return &tpl, nil
}

// GetRules returns all personalization rules for (slug, day). Rules whose
// JSON payloads fail to decode are surfaced as malformed predicates so the
// resolver can skip them instead of failing resolution.
func (r *ContentRepository) GetRules(ctx context.Context, slug track.Slug, day int) ([]personalization.Rule, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, track_slug, day_number, condition, priority, overrides
		FROM personalization_rules
		WHERE track_slug = $1 AND day_number = $2
		ORDER BY id
	`, slug.String(), day)
	if err != nil {
		return nil, storageErr("GetRules", err)
	}
	defer rows.Close()

	var out []personalization.Rule
	for rows.Next() {
		var rule personalization.Rule
		var slugStr string
		var conditionJSON, overridesJSON []byte

		if err := rows.Scan(&rule.ID, &slugStr, &rule.DayNumber, &conditionJSON, &rule.Priority, &overridesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.TrackSlug = track.Slug(slugStr)

		if err := json.Unmarshal(conditionJSON, &rule.Condition); err != nil {
			// An undecodable condition becomes an unknown-kind predicate,
			// which the resolver logs and skips.
			rule.Condition = personalization.Predicate{}
		}
		if err := json.Unmarshal(overridesJSON, &rule.Overrides); err != nil {
			return nil, shared.WrapError("personalization", "GetRules", shared.ErrInvalidInput,
				fmt.Sprintf("undecodable overrides for rule %s", rule.ID), err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
