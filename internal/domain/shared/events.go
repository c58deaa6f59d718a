package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened inside the progression engine.
const (
	// Activity events
	EventActivityCompleted EventType = "activity.completed"
	EventActivityReversed  EventType = "activity.reversed"

	// Day events
	EventDayCompleted EventType = "day.completed"

	// Progress events
	EventLevelUp        EventType = "progress.level_up"
	EventStreakUpdated  EventType = "progress.streak_updated"
	EventStreakBroken   EventType = "progress.streak_broken"
	EventTrackStarted   EventType = "progress.track_started"
	EventTrackCompleted EventType = "progress.track_completed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityCompletedEvent is emitted when an activity completion is accepted.
type ActivityCompletedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	TrackSlug     string `json:"track_slug"`
	DayNumber     int    `json:"day_number"`
	ActivityIndex int    `json:"activity_index"`
	PointsEarned  int    `json:"points_earned"`
}

// Payload implements Event interface.
func (e ActivityCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"track_slug":     e.TrackSlug,
		"day_number":     e.DayNumber,
		"activity_index": e.ActivityIndex,
		"points_earned":  e.PointsEarned,
	}
}

// NewActivityCompletedEvent creates a new activity completed event.
func NewActivityCompletedEvent(userID, trackSlug string, day, index, points int) ActivityCompletedEvent {
	return ActivityCompletedEvent{
		BaseEvent:     NewBaseEvent(EventActivityCompleted, userID),
		UserID:        userID,
		TrackSlug:     trackSlug,
		DayNumber:     day,
		ActivityIndex: index,
		PointsEarned:  points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Day Events
// ═══════════════════════════════════════════════════════════════════════════

// DayCompletedEvent is emitted when a day is finalized.
type DayCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	TrackSlug    string `json:"track_slug"`
	DayNumber    int    `json:"day_number"`
	PointsEarned int    `json:"points_earned"`
	NewDay       int    `json:"new_day"`
	NewStreak    int    `json:"new_streak"`
	NewLevel     int    `json:"new_level"`
}

// Payload implements Event interface.
func (e DayCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"track_slug":    e.TrackSlug,
		"day_number":    e.DayNumber,
		"points_earned": e.PointsEarned,
		"new_day":       e.NewDay,
		"new_streak":    e.NewStreak,
		"new_level":     e.NewLevel,
	}
}

// NewDayCompletedEvent creates a new day completed event.
func NewDayCompletedEvent(userID, trackSlug string, day, points, newDay, newStreak, newLevel int) DayCompletedEvent {
	return DayCompletedEvent{
		BaseEvent:    NewBaseEvent(EventDayCompleted, userID),
		UserID:       userID,
		TrackSlug:    trackSlug,
		DayNumber:    day,
		PointsEarned: points,
		NewDay:       newDay,
		NewStreak:    newStreak,
		NewLevel:     newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted when a user reaches a new level on a track.
type LevelUpEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	TrackSlug string `json:"track_slug"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"track_slug": e.TrackSlug,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
	}
}

// NewLevelUpEvent creates a new level up event.
func NewLevelUpEvent(userID, trackSlug string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		TrackSlug: trackSlug,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// StreakUpdatedEvent is emitted when a streak is extended or reset.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	TrackSlug string `json:"track_slug"`
	Streak    int    `json:"streak"`
	WasReset  bool   `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"track_slug": e.TrackSlug,
		"streak":     e.Streak,
		"was_reset":  e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new streak updated event.
func NewStreakUpdatedEvent(userID, trackSlug string, streak int, wasReset bool) StreakUpdatedEvent {
	eventType := EventStreakUpdated
	if wasReset {
		eventType = EventStreakBroken
	}
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		UserID:    userID,
		TrackSlug: trackSlug,
		Streak:    streak,
		WasReset:  wasReset,
	}
}

// TrackCompletedEvent is emitted when a user finishes the last day of a track.
type TrackCompletedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	TrackSlug   string `json:"track_slug"`
	TotalPoints int    `json:"total_points"`
}

// Payload implements Event interface.
func (e TrackCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"track_slug":   e.TrackSlug,
		"total_points": e.TotalPoints,
	}
}

// NewTrackCompletedEvent creates a new track completed event.
func NewTrackCompletedEvent(userID, trackSlug string, totalPoints int) TrackCompletedEvent {
	return TrackCompletedEvent{
		BaseEvent:   NewBaseEvent(EventTrackCompleted, userID),
		UserID:      userID,
		TrackSlug:   trackSlug,
		TotalPoints: totalPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when the evaluator grants a new badge.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementType string `json:"achievement_type"`
	TrackSlug       string `json:"track_slug,omitempty"`
	PointsAwarded   int    `json:"points_awarded"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_type": e.AchievementType,
		"track_slug":       e.TrackSlug,
		"points_awarded":   e.PointsAwarded,
	}
}

// NewAchievementUnlockedEvent creates a new achievement unlocked event.
func NewAchievementUnlockedEvent(userID, achievementType, trackSlug string, points int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:          userID,
		AchievementType: achievementType,
		TrackSlug:       trackSlug,
		PointsAwarded:   points,
	}
}
