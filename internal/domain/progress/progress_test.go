package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/pkg/timeutil"
)

func TestNewUserTrackProgress(t *testing.T) {
	p, err := NewUserTrackProgress("user-1", "equilibrio")
	require.NoError(t, err)

	assert.Equal(t, 1, p.CurrentDay)
	assert.Equal(t, 0, p.TotalPoints)
	assert.Equal(t, 0, p.StreakDays)
	assert.Equal(t, 1, p.LevelNumber)
	assert.True(t, p.IsActive)
	assert.True(t, p.LastActivityAt.IsZero())
}

func TestNewUserTrackProgress_Validation(t *testing.T) {
	_, err := NewUserTrackProgress("", "equilibrio")
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = NewUserTrackProgress("user-1", "NOT VALID")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points, quantum, want int
	}{
		{0, 100, 1},
		{99, 100, 1},
		{100, 100, 2},
		{250, 100, 3},
		{1000, 100, 11},
		{50, 0, 1},   // bad quantum falls back to the default
		{-10, 100, 1}, // negative points clamp
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForPoints(tt.points, tt.quantum),
			"points=%d quantum=%d", tt.points, tt.quantum)
	}
}

func TestNextStreak(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 20, 0, 0, 0, timeutil.PlatformTZ)
	}

	t.Run("first finalization starts at 1", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 0}
		streak, reset := p.NextStreak(day(10))
		assert.Equal(t, 1, streak)
		assert.False(t, reset)
	})

	t.Run("same calendar day extends", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 3, LastActivityAt: day(10)}
		streak, reset := p.NextStreak(day(10).Add(2 * time.Hour))
		assert.Equal(t, 4, streak)
		assert.False(t, reset)
	})

	t.Run("next calendar day extends", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 3, LastActivityAt: day(10)}
		streak, reset := p.NextStreak(day(11))
		assert.Equal(t, 4, streak)
		assert.False(t, reset)
	})

	t.Run("two-day gap resets to 1", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 7, LastActivityAt: day(10)}
		streak, reset := p.NextStreak(day(12))
		assert.Equal(t, 1, streak)
		assert.True(t, reset)
	})

	t.Run("week-long gap resets to 1", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 21, LastActivityAt: day(3)}
		streak, reset := p.NextStreak(day(10))
		assert.Equal(t, 1, streak)
		assert.True(t, reset)
	})

	t.Run("clock skew treated as same day", func(t *testing.T) {
		p := &UserTrackProgress{StreakDays: 2, LastActivityAt: day(11)}
		streak, reset := p.NextStreak(day(10))
		assert.Equal(t, 3, streak)
		assert.False(t, reset)
	})
}

func TestNextCurrentDay(t *testing.T) {
	def := track.Definition{Slug: "reinicio", DurationDays: 7, LevelPointQuantum: 100}

	t.Run("advances past the finalized day", func(t *testing.T) {
		p := &UserTrackProgress{CurrentDay: 3}
		assert.Equal(t, 4, p.NextCurrentDay(3, def))
	})

	t.Run("finalizing an earlier day never moves backwards", func(t *testing.T) {
		p := &UserTrackProgress{CurrentDay: 5}
		assert.Equal(t, 5, p.NextCurrentDay(2, def))
	})

	t.Run("caps at the completion sentinel", func(t *testing.T) {
		p := &UserTrackProgress{CurrentDay: 7}
		assert.Equal(t, 8, p.NextCurrentDay(7, def))

		p.CurrentDay = 8
		assert.Equal(t, 8, p.NextCurrentDay(7, def))
	})
}

func TestHasReachedDay(t *testing.T) {
	p := &UserTrackProgress{CurrentDay: 5}
	assert.True(t, p.HasReachedDay(1))
	assert.True(t, p.HasReachedDay(5))
	assert.False(t, p.HasReachedDay(6))
}

func TestHasCompletedTrack(t *testing.T) {
	def := track.Definition{Slug: "reinicio", DurationDays: 7, LevelPointQuantum: 100}

	assert.False(t, (&UserTrackProgress{CurrentDay: 7}).HasCompletedTrack(def))
	assert.True(t, (&UserTrackProgress{CurrentDay: 8}).HasCompletedTrack(def))
}

func TestGetAchievementDefinition(t *testing.T) {
	def, ok := GetAchievementDefinition(AchievementStreak7)
	require.True(t, ok)
	assert.Equal(t, "Una semana entera", def.Name)
	assert.False(t, def.TrackScoped)

	def, ok = GetAchievementDefinition(AchievementTrackComplete)
	require.True(t, ok)
	assert.True(t, def.TrackScoped)

	_, ok = GetAchievementDefinition("fake_badge")
	assert.False(t, ok)
}
