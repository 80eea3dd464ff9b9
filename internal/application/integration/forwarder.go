package integration

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/shared"
)

// EnvelopeVersion is the fixed outbound payload version.
const EnvelopeVersion = "1.0"

// occurredAtLayout is RFC 3339 with millisecond precision, the timestamp
// shape consumers of the envelope expect.
const occurredAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Actor identifies who triggered the event in the outbound payload.
type Actor struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Entity identifies the aggregate the event concerns.
type Entity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Envelope is the fixed outbound webhook payload shape.
type Envelope struct {
	Version     string         `json:"version"`
	Event       string         `json:"event"`
	EventID     string         `json:"eventId"`
	OccurredAt  string         `json:"occurredAt"`
	Environment string         `json:"environment"`
	Source      string         `json:"source"`
	Actor       Actor          `json:"actor"`
	Entity      Entity         `json:"entity"`
	Data        map[string]any `json:"data"`
}

// Emitter sends an envelope to the configured endpoint. It reports whether
// a send was attempted and accepted; it never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, envelope Envelope) bool
}

// Forwarder subscribes to every domain event and forwards it as a webhook.
type Forwarder struct {
	emitter     Emitter
	environment string
	source      string
	logger      *zap.Logger
}

// NewForwarder creates a Forwarder
func NewForwarder(emitter Emitter, environment, source string, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		emitter:     emitter,
		environment: environment,
		source:      source,
		logger:      logger,
	}
}

// EventTypes returns nil, subscribing the forwarder to all events
func (f *Forwarder) EventTypes() []string {
	return nil
}

// Handle forwards one event. Emission failures are already logged by the
// emitter and never propagate.
func (f *Forwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	envelope := f.buildEnvelope(event)
	if !f.emitter.Emit(ctx, envelope) {
		f.logger.Debug("webhook not delivered",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", envelope.EventID))
	}
	return nil
}

func (f *Forwarder) buildEnvelope(event shared.DomainEvent) Envelope {
	envelope := Envelope{
		Version:     EnvelopeVersion,
		Event:       event.EventType(),
		EventID:     event.EventID().String(),
		OccurredAt:  event.OccurredAt().UTC().Format(occurredAtLayout),
		Environment: f.environment,
		Source:      f.source,
		Entity: Entity{
			Type: event.AggregateType(),
			ID:   event.AggregateID().String(),
		},
		Data: eventData(event),
	}
	if carrier, ok := event.(shared.ActorCarrier); ok {
		actor := carrier.Actor()
		envelope.Actor = Actor{
			UserID:   actor.UserID.String(),
			Username: actor.Username,
			Role:     actor.Role,
		}
	}
	return envelope
}

// eventData flattens the concrete event struct into the data section.
func eventData(event shared.DomainEvent) map[string]any {
	raw, err := json.Marshal(event)
	if err != nil {
		return map[string]any{}
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]any{}
	}
	return data
}
