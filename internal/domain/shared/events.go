// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is emitted only after the state change it
// describes has been committed.
const (
	EventUserEnrolled    EventType = "rewards.user_enrolled"
	EventCourseCompleted EventType = "rewards.course_completed"
	EventCourseConfigSet EventType = "rewards.course_config_set"
	EventMultiplierSet   EventType = "rewards.multiplier_set"
	EventAdminChanged    EventType = "rewards.admin_changed"
	EventTotalReconciled EventType = "rewards.total_reconciled"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// BlockHeight returns the logical height the event was emitted at.
	BlockHeight() uint64

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Height      uint64    `json:"height"`
	Version     int       `json:"version"`
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

// BlockHeight implements Event interface.
func (e BaseEvent) BlockHeight() uint64 {
	return e.Height
}

// NewBaseEvent creates a new base event stamped with the logical height.
func NewBaseEvent(eventType EventType, aggregateID string, height uint64) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Height:      height,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment & Completion Events
// ═══════════════════════════════════════════════════════════════════════════

// UserEnrolledEvent is emitted when enrollUser records a new enrollment.
type UserEnrolledEvent struct {
	BaseEvent
	User   Identity `json:"user"`
	Course CourseID `json:"course"`
}

// Payload implements Event interface.
func (e UserEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user":   e.User.String(),
		"course": e.Course.Uint64(),
	}
}

// NewUserEnrolledEvent creates a new UserEnrolledEvent.
func NewUserEnrolledEvent(key EnrollmentKey, height uint64) UserEnrolledEvent {
	return UserEnrolledEvent{
		BaseEvent: NewBaseEvent(EventUserEnrolled, key.String(), height),
		User:      key.User,
		Course:    key.Course,
	}
}

// CourseCompletedEvent is emitted after a completion has been committed and
// the minted total incremented.
type CourseCompletedEvent struct {
	BaseEvent
	User          Identity `json:"user"`
	Course        CourseID `json:"course"`
	Score         uint64   `json:"score"`
	TokensAwarded string   `json:"tokens_awarded"`
	CertID        string   `json:"cert_id"`
	ProofDigest   string   `json:"proof_digest,omitempty"`
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user":           e.User.String(),
		"course":         e.Course.Uint64(),
		"score":          e.Score,
		"tokens_awarded": e.TokensAwarded,
		"cert_id":        e.CertID,
		"proof_digest":   e.ProofDigest,
	}
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
// tokens is the decimal representation of the awarded amount.
func NewCourseCompletedEvent(key EnrollmentKey, score uint64, tokens, certID string, height uint64) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent:     NewBaseEvent(EventCourseCompleted, key.String(), height),
		User:          key.User,
		Course:        key.Course,
		Score:         score,
		TokensAwarded: tokens,
		CertID:        certID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Administration Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseConfigSetEvent is emitted when the administrator upserts a course config.
type CourseConfigSetEvent struct {
	BaseEvent
	Course        CourseID `json:"course"`
	Difficulty    uint64   `json:"difficulty"`
	BaseReward    uint64   `json:"base_reward"`
	PassThreshold uint64   `json:"pass_threshold"`
}

// Payload implements Event interface.
func (e CourseConfigSetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course":         e.Course.Uint64(),
		"difficulty":     e.Difficulty,
		"base_reward":    e.BaseReward,
		"pass_threshold": e.PassThreshold,
	}
}

// NewCourseConfigSetEvent creates a new CourseConfigSetEvent.
func NewCourseConfigSetEvent(course CourseID, difficulty uint64, baseReward, passThreshold, height uint64) CourseConfigSetEvent {
	return CourseConfigSetEvent{
		BaseEvent:     NewBaseEvent(EventCourseConfigSet, "course/"+course.String(), height),
		Course:        course,
		Difficulty:    difficulty,
		BaseReward:    baseReward,
		PassThreshold: passThreshold,
	}
}

// MultiplierSetEvent is emitted when the global reward multiplier changes.
type MultiplierSetEvent struct {
	BaseEvent
	Multiplier uint64 `json:"multiplier"`
}

// Payload implements Event interface.
func (e MultiplierSetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"multiplier": e.Multiplier}
}

// NewMultiplierSetEvent creates a new MultiplierSetEvent.
func NewMultiplierSetEvent(multiplier, height uint64) MultiplierSetEvent {
	return MultiplierSetEvent{
		BaseEvent:  NewBaseEvent(EventMultiplierSet, "global", height),
		Multiplier: multiplier,
	}
}

// AdminChangedEvent is emitted when the administrator hands over the role.
type AdminChangedEvent struct {
	BaseEvent
	Previous Identity `json:"previous"`
	Current  Identity `json:"current"`
}

// Payload implements Event interface.
func (e AdminChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous": e.Previous.String(),
		"current":  e.Current.String(),
	}
}

// NewAdminChangedEvent creates a new AdminChangedEvent.
func NewAdminChangedEvent(previous, current Identity, height uint64) AdminChangedEvent {
	return AdminChangedEvent{
		BaseEvent: NewBaseEvent(EventAdminChanged, "global", height),
		Previous:  previous,
		Current:   current,
	}
}

// TotalReconciledEvent is emitted when the minted total is recomputed from
// the completion ledger.
type TotalReconciledEvent struct {
	BaseEvent
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// Payload implements Event interface.
func (e TotalReconciledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous": e.Previous,
		"current":  e.Current,
	}
}

// NewTotalReconciledEvent creates a new TotalReconciledEvent.
func NewTotalReconciledEvent(previous, current string, height uint64) TotalReconciledEvent {
	return TotalReconciledEvent{
		BaseEvent: NewBaseEvent(EventTotalReconciled, "global", height),
		Previous:  previous,
		Current:   current,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Publishing
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

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
