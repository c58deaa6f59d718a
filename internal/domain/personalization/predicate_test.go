package personalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicate_Evaluate(t *testing.T) {
	attrs := UserAttributes{
		AssessmentScore: 55,
		Category:        "ansiedad",
		Profile:         map[string]string{"age_group": "25-34", "goal": "dormir mejor"},
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"score in range", ScoreRange(40, 60), true},
		{"score at lower bound", ScoreRange(55, 100), true},
		{"score at upper bound", ScoreRange(0, 55), true},
		{"score below range", ScoreRange(60, 100), false},
		{"category match", CategoryIs("ansiedad"), true},
		{"category case-insensitive", CategoryIs("Ansiedad"), true},
		{"category mismatch", CategoryIs("sueño"), false},
		{"profile match", ProfileIs("age_group", "25-34"), true},
		{"profile mismatch", ProfileIs("age_group", "35-44"), false},
		{"profile absent field", ProfileIs("region", "andina"), false},
		{"all_of all match", AllOf(ScoreRange(0, 100), CategoryIs("ansiedad")), true},
		{"all_of one fails", AllOf(ScoreRange(0, 100), CategoryIs("sueño")), false},
		{"any_of one matches", AnyOf(CategoryIs("sueño"), CategoryIs("ansiedad")), true},
		{"any_of none match", AnyOf(CategoryIs("sueño"), CategoryIs("relaciones")), false},
		{"nested composite", AllOf(ScoreRange(50, 60), AnyOf(ProfileIs("goal", "dormir mejor"), CategoryIs("sueño"))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pred.Evaluate(attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicate_Evaluate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
	}{
		{"unknown kind", Predicate{Kind: "regex_match", Value: ".*"}},
		{"empty kind", Predicate{}},
		{"inverted score range", ScoreRange(80, 20)},
		{"category without value", Predicate{Kind: KindCategoryIs}},
		{"profile without field", Predicate{Kind: KindProfileIs, Value: "x"}},
		{"profile without value", Predicate{Kind: KindProfileIs, Field: "x"}},
		{"all_of without children", Predicate{Kind: KindAllOf}},
		{"any_of without children", Predicate{Kind: KindAnyOf}},
		{"malformed child poisons all_of", AllOf(CategoryIs("sueño"), Predicate{Kind: "nope"})},
		{"malformed child poisons any_of", AnyOf(CategoryIs("ansiedad"), Predicate{Kind: "nope"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pred.Evaluate(UserAttributes{Category: "ansiedad"})
			assert.ErrorIs(t, err, ErrMalformedPredicate)
		})
	}
}

func TestPredicate_Evaluate_Deterministic(t *testing.T) {
	pred := AllOf(ScoreRange(0, 70), AnyOf(CategoryIs("ansiedad"), ProfileIs("goal", "calma")))
	attrs := UserAttributes{AssessmentScore: 30, Category: "ansiedad"}

	first, err := pred.Evaluate(attrs)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := pred.Evaluate(attrs)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestPredicate_Specificity(t *testing.T) {
	assert.Equal(t, 1, ScoreRange(0, 50).Specificity())
	assert.Equal(t, 1, CategoryIs("sueño").Specificity())
	assert.Equal(t, 2, AllOf(ScoreRange(0, 50), CategoryIs("sueño")).Specificity())
	assert.Equal(t, 3, AllOf(ScoreRange(0, 50), AnyOf(CategoryIs("sueño"), ProfileIs("a", "b"))).Specificity())
}
