package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progression events
	EventSessionCompleted    EventType = "progression.session_completed"
	EventAchievementUnlocked EventType = "progression.achievement_unlocked"
	EventLevelUp             EventType = "progression.level_up"

	// Roadmap events
	EventIdeaCreated EventType = "roadmap.idea_created"
	EventVoteToggled EventType = "roadmap.vote_toggled"

	// Quota events
	EventQuotaDenied EventType = "quota.denied"
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
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at.UTC(),
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
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionCompletedEvent is emitted after a session reward is persisted.
type SessionCompletedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Score     int    `json:"score"`
	XPGained  int    `json:"xp_gained"`
	TotalXP   int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"score":      e.Score,
		"xp_gained":  e.XPGained,
		"total_xp":   e.TotalXP,
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(userID, sessionID string, score, xpGained, totalXP int, at time.Time) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent: NewBaseEvent(EventSessionCompleted, userID, at),
		SessionID: sessionID,
		Score:     score,
		XPGained:  xpGained,
		TotalXP:   totalXP,
	}
}

// AchievementUnlockedEvent is emitted once per newly unlocked achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID string, xpReward int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID, at),
		AchievementID: achievementID,
		XPReward:      xpReward,
	}
}

// LevelUpEvent is emitted when a reward crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"title":     e.Title,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, title string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Roadmap Events
// ═══════════════════════════════════════════════════════════════════════════

// IdeaCreatedEvent is emitted when a roadmap idea is stored.
type IdeaCreatedEvent struct {
	BaseEvent
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
}

// Payload implements Event interface.
func (e IdeaCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title":      e.Title,
		"created_by": e.CreatedBy,
	}
}

// NewIdeaCreatedEvent creates a new IdeaCreatedEvent.
func NewIdeaCreatedEvent(ideaID, title, createdBy string, at time.Time) IdeaCreatedEvent {
	return IdeaCreatedEvent{
		BaseEvent: NewBaseEvent(EventIdeaCreated, ideaID, at),
		Title:     title,
		CreatedBy: createdBy,
	}
}

// VoteToggledEvent carries the committed vote count of an idea.
type VoteToggledEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	VoteCount int    `json:"vote_count"`
	Upvoted   bool   `json:"upvoted"`
}

// Payload implements Event interface.
func (e VoteToggledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"vote_count": e.VoteCount,
		"upvoted":    e.Upvoted,
	}
}

// NewVoteToggledEvent creates a new VoteToggledEvent.
func NewVoteToggledEvent(ideaID, userID string, voteCount int, upvoted bool, at time.Time) VoteToggledEvent {
	return VoteToggledEvent{
		BaseEvent: NewBaseEvent(EventVoteToggled, ideaID, at),
		UserID:    userID,
		VoteCount: voteCount,
		Upvoted:   upvoted,
	}
}

// QuotaDeniedEvent is emitted when the daily limit rejects a request.
type QuotaDeniedEvent struct {
	BaseEvent
	ResetsAt time.Time `json:"resets_at"`
}

// Payload implements Event interface.
func (e QuotaDeniedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"resets_at": e.ResetsAt,
	}
}

// NewQuotaDeniedEvent creates a new QuotaDeniedEvent.
func NewQuotaDeniedEvent(userID string, resetsAt time.Time, at time.Time) QuotaDeniedEvent {
	return QuotaDeniedEvent{
		BaseEvent: NewBaseEvent(EventQuotaDenied, userID, at),
		ResetsAt:  resetsAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
