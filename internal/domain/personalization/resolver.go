package personalization

import (
	"context"
	"sort"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSONALIZATION RESOLVER
// Merges the base daily template with the best-matching rule into the
// effective content a user sees. Resolution is read-only and deterministic:
// identical (track, day, attributes) inputs always yield identical output.
// ══════════════════════════════════════════════════════════════════════════════

// ResolvedDay is the effective content for a user on one track day.
type ResolvedDay struct {
	// Template is the merged content.
	Template *track.DailyTemplate

	// Personalized is true when a rule override was applied.
	Personalized bool

	// AppliedRuleIDs lists the rule(s) merged into the template.
	AppliedRuleIDs []string

	// TrackComplete is true when the requested day is past the track's end;
	// Template then carries the completion sentinel content.
	TrackComplete bool
}

// Resolver resolves effective day content.
type Resolver struct {
	catalog *track.Catalog
	content track.ContentRepository
	rules   RuleStore
	log     *logger.Logger
}

// NewResolver creates a Resolver.
func NewResolver(catalog *track.Catalog, content track.ContentRepository, rules RuleStore, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		catalog: catalog,
		content: content,
		rules:   rules,
		log:     log.With(logger.Component("resolver")),
	}
}

// Resolve returns the effective content for (slug, day) as seen by a user
// with the given attribute snapshot.
//
// Days outside [1, duration] yield a "track complete" sentinel, not an error.
// A missing template degrades to a generic stub. Malformed rule predicates
// are skipped and logged. Storage failures are the only fatal outcome.
func (r *Resolver) Resolve(ctx context.Context, slug track.Slug, day int, attrs UserAttributes) (*ResolvedDay, error) {
	def, err := r.catalog.Get(slug)
	if err != nil {
		return nil, err
	}

	if !def.ContainsDay(day) {
		return &ResolvedDay{
			Template:      completionSentinel(def),
			TrackComplete: true,
		}, nil
	}

	base, err := r.content.GetDailyTemplate(ctx, slug, day)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, err
		}
		r.log.Warn("no template authored, serving generic stub",
			logger.Track(slug.String()), logger.Day(day))
		base = track.NewGenericStub(slug, day)
	}

	rules, err := r.rules.GetRules(ctx, slug, day)
	if err != nil {
		return nil, err
	}

	winner := r.selectRule(rules, attrs, slug, day)
	if winner == nil {
		return &ResolvedDay{Template: base}, nil
	}

	return &ResolvedDay{
		Template:       winner.Overrides.ApplyTo(base),
		Personalized:   true,
		AppliedRuleIDs: []string{winner.ID},
	}, nil
}

// selectRule picks the winning rule among those whose predicate matches.
// Selection order: specificity, then priority, then rule ID. The full sort
// keeps the choice deterministic for identical inputs.
func (r *Resolver) selectRule(rules []Rule, attrs UserAttributes, slug track.Slug, day int) *Rule {
	var matching []Rule
	for _, rule := range rules {
		ok, err := rule.Condition.Evaluate(attrs)
		if err != nil {
			r.log.Warn("skipping malformed rule predicate",
				logger.Track(slug.String()), logger.Day(day),
				logger.String("rule_id", rule.ID), logger.Err(err))
			continue
		}
		if ok {
			matching = append(matching, rule)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	sort.Slice(matching, func(i, j int) bool {
		si, sj := matching[i].Condition.Specificity(), matching[j].Condition.Specificity()
		if si != sj {
			return si > sj
		}
		if matching[i].Priority != matching[j].Priority {
			return matching[i].Priority > matching[j].Priority
		}
		return matching[i].ID < matching[j].ID
	})

	return &matching[0]
}

// completionSentinel is the content served past the end of a track.
func completionSentinel(def track.Definition) *track.DailyTemplate {
	return &track.DailyTemplate{
		TrackSlug:  def.Slug,
		DayNumber:  def.CompletedDay(),
		Title:      "¡Programa completado!",
		Objective:  "Has terminado el programa " + def.Title + ".",
		Devotional: "Celebra el camino recorrido y sostén los hábitos que construiste.",
	}
}
