package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	base := time.Date(2026, 3, 10, 20, 0, 0, 0, PlatformTZ)

	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same instant", base, base, 0},
		{"same day later hour", base, base.Add(3 * time.Hour), 0},
		{"crosses midnight", base, base.Add(5 * time.Hour), 1},
		{"exactly one day", base, base.AddDate(0, 0, 1), 1},
		{"two days", base, base.AddDate(0, 0, 2), 2},
		{"reversed order is negative", base.AddDate(0, 0, 1), base, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestDaysBetween_UTCInputsUsePlatformDays(t *testing.T) {
	// 03:00 UTC is 22:00 the previous day in Bogotá.
	a := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b))
	assert.False(t, SameDay(a, b))
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2026, 3, 10, 23, 45, 0, 0, PlatformTZ)
	got := StartOfDay(in)

	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 10, got.Day())
	assert.Equal(t, PlatformTZ, got.Location())
}
