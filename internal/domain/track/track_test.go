package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
)

func TestParseSlug(t *testing.T) {
	tests := []struct {
		raw     string
		want    Slug
		wantErr bool
	}{
		{"equilibrio", "equilibrio", false},
		{"  Reinicio ", "reinicio", false},
		{"track-21_dias", "track-21_dias", false},
		{"", "", true},
		{"x", "", true},
		{"con espacios", "", true},
		{"acentuación", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSlug(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "raw=%q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewCatalog(t *testing.T) {
	catalog, err := NewCatalog(DefaultDefinitions())
	require.NoError(t, err)

	def, err := catalog.Get("equilibrio")
	require.NoError(t, err)
	assert.Equal(t, 21, def.DurationDays)
	assert.Equal(t, 22, def.CompletedDay())

	_, err = catalog.Get("inexistente")
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestNewCatalog_RejectsInvalidAndDuplicate(t *testing.T) {
	_, err := NewCatalog([]Definition{{Slug: "ok", DurationDays: 0, LevelPointQuantum: 100}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewCatalog([]Definition{
		{Slug: "dup", Title: "A", DurationDays: 7, LevelPointQuantum: 100},
		{Slug: "dup", Title: "B", DurationDays: 21, LevelPointQuantum: 100},
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestDefinition_ContainsDay(t *testing.T) {
	def := Definition{Slug: "reinicio", DurationDays: 7, LevelPointQuantum: 100}

	assert.False(t, def.ContainsDay(0))
	assert.True(t, def.ContainsDay(1))
	assert.True(t, def.ContainsDay(7))
	assert.False(t, def.ContainsDay(8))
}

func TestDailyTemplate_ActivityAt(t *testing.T) {
	tpl := &DailyTemplate{Activities: []Activity{
		{Title: "Respiración", Points: 20, Required: true},
		{Title: "Diario", Points: 10},
	}}

	a, err := tpl.ActivityAt(1)
	require.NoError(t, err)
	assert.Equal(t, "Diario", a.Title)

	_, err = tpl.ActivityAt(-1)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = tpl.ActivityAt(2)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestDailyTemplate_RequiredIndexes(t *testing.T) {
	tpl := &DailyTemplate{Activities: []Activity{
		{Title: "a", Required: true},
		{Title: "b"},
		{Title: "c", Required: true},
	}}
	assert.Equal(t, []int{0, 2}, tpl.RequiredIndexes())

	empty := &DailyTemplate{}
	assert.Empty(t, empty.RequiredIndexes())
}
