// Package personalization contains personalization rules and the resolver
// that merges a base daily template with the best-matching rule for a user.
package personalization

import (
	"fmt"
	"strings"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

// UserAttributes is the read-only snapshot a rule predicate is evaluated
// against. It is supplied by the user-profile collaborator; the engine never
// mutates it.
type UserAttributes struct {
	// AssessmentScore is the score from the onboarding assessment (0-100).
	AssessmentScore int `json:"assessment_score"`

	// Category is the most-affected life category from the assessment
	// (e.g., "sueño", "ansiedad", "relaciones").
	Category string `json:"category"`

	// Profile carries free-form profile fields (age_group, goal, ...).
	Profile map[string]string `json:"profile,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDICATES
// A closed set of tagged predicate variants evaluated by a pure interpreter.
// Free-form condition payloads from the authoring tool are decoded into this
// set; anything outside it is a malformed predicate.
// ══════════════════════════════════════════════════════════════════════════════

// PredicateKind tags a predicate variant.
type PredicateKind string

const (
	// KindScoreRange matches when AssessmentScore is within [Min, Max].
	KindScoreRange PredicateKind = "score_range"

	// KindCategoryIs matches when Category equals Value (case-insensitive).
	KindCategoryIs PredicateKind = "category_is"

	// KindProfileIs matches when Profile[Field] equals Value.
	KindProfileIs PredicateKind = "profile_is"

	// KindAllOf matches when every child predicate matches.
	KindAllOf PredicateKind = "all_of"

	// KindAnyOf matches when at least one child predicate matches.
	KindAnyOf PredicateKind = "any_of"
)

// Predicate is one node of a condition tree.
type Predicate struct {
	Kind PredicateKind `json:"kind"`

	// Min/Max bound score_range (inclusive on both ends).
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`

	// Field/Value parameterize category_is and profile_is.
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`

	// Children hold the operands of all_of / any_of.
	Children []Predicate `json:"children,omitempty"`
}

// ErrMalformedPredicate marks a predicate the interpreter cannot evaluate.
// Malformed predicates are skipped and logged by the resolver, never fatal.
var ErrMalformedPredicate = shared.NewDomainError("personalization", "Evaluate",
	shared.ErrInvalidInput, "malformed predicate")

// Evaluate runs the predicate against an attribute snapshot. It is a pure
// function: identical inputs always produce identical results.
func (p Predicate) Evaluate(attrs UserAttributes) (bool, error) {
	switch p.Kind {
	case KindScoreRange:
		if p.Min > p.Max {
			return false, fmt.Errorf("%w: score_range min %d > max %d", ErrMalformedPredicate, p.Min, p.Max)
		}
		return attrs.AssessmentScore >= p.Min && attrs.AssessmentScore <= p.Max, nil

	case KindCategoryIs:
		if p.Value == "" {
			return false, fmt.Errorf("%w: category_is requires a value", ErrMalformedPredicate)
		}
		return strings.EqualFold(attrs.Category, p.Value), nil

	case KindProfileIs:
		if p.Field == "" || p.Value == "" {
			return false, fmt.Errorf("%w: profile_is requires field and value", ErrMalformedPredicate)
		}
		return attrs.Profile[p.Field] == p.Value, nil

	case KindAllOf:
		if len(p.Children) == 0 {
			return false, fmt.Errorf("%w: all_of requires children", ErrMalformedPredicate)
		}
		for _, child := range p.Children {
			ok, err := child.Evaluate(attrs)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindAnyOf:
		if len(p.Children) == 0 {
			return false, fmt.Errorf("%w: any_of requires children", ErrMalformedPredicate)
		}
		// A malformed child poisons the whole predicate: evaluate all
		// children before concluding a match.
		matched := false
		for _, child := range p.Children {
			ok, err := child.Evaluate(attrs)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
			}
		}
		return matched, nil

	default:
		return false, fmt.Errorf("%w: unknown kind %q", ErrMalformedPredicate, p.Kind)
	}
}

// Specificity counts the leaf conditions of the predicate tree. A rule whose
// condition names more facts about the user beats a broader one.
func (p Predicate) Specificity() int {
	switch p.Kind {
	case KindAllOf, KindAnyOf:
		total := 0
		for _, child := range p.Children {
			total += child.Specificity()
		}
		return total
	default:
		return 1
	}
}

// ScoreRange builds a score_range predicate.
func ScoreRange(min, max int) Predicate {
	return Predicate{Kind: KindScoreRange, Min: min, Max: max}
}

// CategoryIs builds a category_is predicate.
func CategoryIs(value string) Predicate {
	return Predicate{Kind: KindCategoryIs, Value: value}
}

// ProfileIs builds a profile_is predicate.
func ProfileIs(field, value string) Predicate {
	return Predicate{Kind: KindProfileIs, Field: field, Value: value}
}

// AllOf builds an all_of composite.
func AllOf(children ...Predicate) Predicate {
	return Predicate{Kind: KindAllOf, Children: children}
}

// AnyOf builds an any_of composite.
func AnyOf(children ...Predicate) Predicate {
	return Predicate{Kind: KindAnyOf, Children: children}
}
