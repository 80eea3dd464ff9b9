package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func newOrderEvent() shared.DomainEvent {
	order := workflow.NewOrder(workflow.OrderTypeAgentRestock, uuid.New(), nil)
	return workflow.NewOrderCreated(order, 5, shared.SystemActor)
}

func TestPublishDeliversToMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	matching := &recordingHandler{types: []string{workflow.EventOrderCreated}}
	other := &recordingHandler{types: []string{workflow.EventOrderCompleted}}
	bus.Subscribe(matching, matching.EventTypes()...)
	bus.Subscribe(other, other.EventTypes()...)

	require.NoError(t, bus.Publish(context.Background(), newOrderEvent()))

	assert.Len(t, matching.received, 1)
	assert.Empty(t, other.received)
}

func TestSubscribeWithoutTypesUsesHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{workflow.EventOrderCreated}}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newOrderEvent()))
	assert.Len(t, handler.received, 1)
}

func TestPublishSurvivesFailingHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{types: []string{workflow.EventOrderCreated}, err: errors.New("boom")}
	healthy := &recordingHandler{types: []string{workflow.EventOrderCreated}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newOrderEvent()))
	assert.Len(t, healthy.received, 1)
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	panicking := &recordingHandler{types: []string{workflow.EventOrderCreated}, panics: true}
	healthy := &recordingHandler{types: []string{workflow.EventOrderCreated}}
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newOrderEvent()))
	assert.Len(t, healthy.received, 1)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{workflow.EventOrderCreated}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newOrderEvent()))
	assert.Empty(t, handler.received)
}
