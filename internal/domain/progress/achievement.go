package progress

import (
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// One-time badges. At most one row per (user, type) for global achievements,
// or per (user, type, track) for track-scoped ones. The uniqueness is
// enforced by the storage layer's insert-if-absent, which is what makes the
// evaluator idempotent under concurrency.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType identifies a badge.
type AchievementType string

const (
	// AchievementFirstActivity - first activity ever completed.
	AchievementFirstActivity AchievementType = "first_activity"
	// AchievementStreak3 - 3 consecutive finalized days.
	AchievementStreak3 AchievementType = "streak_3"
	// AchievementStreak7 - 7 consecutive finalized days.
	AchievementStreak7 AchievementType = "streak_7"
	// AchievementStreak21 - 21 consecutive finalized days.
	AchievementStreak21 AchievementType = "streak_21"
	// AchievementPoints500 - 500 cumulative points on one track.
	AchievementPoints500 AchievementType = "points_500"
	// AchievementPoints1000 - 1000 cumulative points on one track.
	AchievementPoints1000 AchievementType = "points_1000"
	// AchievementLevel5 - reached level 5 on one track.
	AchievementLevel5 AchievementType = "level_5"
	// AchievementTrackComplete - finished all days of a track (track-scoped).
	AchievementTrackComplete AchievementType = "track_complete"
)

// Achievement is a granted badge.
type Achievement struct {
	// ID is the surrogate row identifier (UUID).
	ID string

	// UserID is the badge owner.
	UserID string

	// Type identifies the badge.
	Type AchievementType

	// TrackSlug scopes track-bound badges; empty for global ones.
	TrackSlug track.Slug

	// PointsAwarded is the celebratory bonus attached to the badge. It is
	// recorded on the badge itself and kept out of track point totals, which
	// must stay equal to the completion log plus day bonuses.
	PointsAwarded int

	// EarnedAt is when the badge was granted.
	EarnedAt time.Time
}

// Definition describes an achievement for catalogs and presentation.
type Definition struct {
	Type        AchievementType
	Name        string
	Description string
	TrackScoped bool
	Points      int
}

// GetAchievementDefinitions returns all achievement definitions.
func GetAchievementDefinitions() []Definition {
	return []Definition{
		{AchievementFirstActivity, "Primer paso", "Completaste tu primera actividad", false, 25},
		{AchievementStreak3, "Tres seguidos", "3 días consecutivos", false, 50},
		{AchievementStreak7, "Una semana entera", "7 días consecutivos", false, 100},
		{AchievementStreak21, "Hábito formado", "21 días consecutivos", false, 300},
		{AchievementPoints500, "Medio millar", "500 puntos acumulados", true, 75},
		{AchievementPoints1000, "Mil puntos", "1000 puntos acumulados", true, 150},
		{AchievementLevel5, "Nivel cinco", "Alcanzaste el nivel 5", true, 100},
		{AchievementTrackComplete, "Programa completado", "Terminaste todos los días del programa", true, 200},
	}
}

// GetAchievementDefinition returns the definition for a type.
func GetAchievementDefinition(t AchievementType) (Definition, bool) {
	for _, def := range GetAchievementDefinitions() {
		if def.Type == t {
			return def, true
		}
	}
	return Definition{}, false
}
