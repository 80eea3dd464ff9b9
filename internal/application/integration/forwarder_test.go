package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
)

type capturingEmitter struct {
	envelopes []Envelope
	accept    bool
}

func (e *capturingEmitter) Emit(_ context.Context, envelope Envelope) bool {
	e.envelopes = append(e.envelopes, envelope)
	return e.accept
}

func TestForwarderBuildsEnvelope(t *testing.T) {
	emitter := &capturingEmitter{accept: true}
	forwarder := NewForwarder(emitter, "test", "opsflow-backend", zap.NewNop())
	orderID := uuid.New()
	event := automation.NewAutomationFailed(orderID, "order lookup failed")

	require.NoError(t, forwarder.Handle(context.Background(), event))
	require.Len(t, emitter.envelopes, 1)

	envelope := emitter.envelopes[0]
	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.Equal(t, event.EventType(), envelope.Event)
	assert.Equal(t, event.EventID().String(), envelope.EventID)
	assert.Equal(t, "test", envelope.Environment)
	assert.Equal(t, "opsflow-backend", envelope.Source)
	assert.Equal(t, orderID.String(), envelope.Entity.ID)
	assert.Equal(t, "system", envelope.Actor.Username)
}

func TestForwarderTimestampMillisecondPrecision(t *testing.T) {
	emitter := &capturingEmitter{accept: true}
	forwarder := NewForwarder(emitter, "test", "opsflow-backend", zap.NewNop())
	event := automation.NewAutomationFailed(uuid.New(), "order lookup failed")

	require.NoError(t, forwarder.Handle(context.Background(), event))
	require.Len(t, emitter.envelopes, 1)

	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, emitter.envelopes[0].OccurredAt)
}

func TestForwarderSwallowsEmitFailure(t *testing.T) {
	emitter := &capturingEmitter{accept: false}
	forwarder := NewForwarder(emitter, "test", "opsflow-backend", zap.NewNop())
	event := automation.NewAutomationFailed(uuid.New(), "order lookup failed")

	assert.NoError(t, forwarder.Handle(context.Background(), event))
}
