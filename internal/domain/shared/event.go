package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventActor identifies who caused a domain event. A zero value means the
// system itself acted (cascades, low-stock triggers, scheduled work).
type EventActor struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// SystemActor is the actor used for engine-initiated transitions.
var SystemActor = EventActor{Username: "system", Role: "system"}

// ActorCarrier is implemented by events that know who triggered them.
// The webhook forwarder and notification dispatcher use it to build
// actor-aware payloads without inspecting concrete event types.
type ActorCarrier interface {
	Actor() EventActor
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Timestamp  time.Time  `json:"timestamp"`
	AggID      uuid.UUID  `json:"aggregate_id"`
	AggType    string     `json:"aggregate_type"`
	ActorValue EventActor `json:"actor"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// Actor returns the actor that triggered this event
func (e *BaseDomainEvent) Actor() EventActor {
	return e.ActorValue
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID, actor EventActor) BaseDomainEvent {
	return BaseDomainEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		AggID:      aggID,
		AggType:    aggType,
		ActorValue: actor,
	}
}
