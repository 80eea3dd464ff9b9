package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// EventRecorder feeds the engine counters from the event bus so the hot
// paths stay free of metrics plumbing.
type EventRecorder struct {
	metrics *EngineMetrics
}

// NewEventRecorder creates an EventRecorder
func NewEventRecorder(metrics *EngineMetrics) *EventRecorder {
	return &EventRecorder{metrics: metrics}
}

// EventTypes returns the subscribed event types
func (r *EventRecorder) EventTypes() []string {
	return []string{
		workflow.EventOrderCreated,
		workflow.EventStepCompleted,
		automation.EventTaskClaimed,
		sales.EventSaleCompleted,
		inventory.EventLowStock,
	}
}

// Handle records the counter matching the concrete event type. Events that
// share a wire type with another aggregate fall through the type switch.
func (r *EventRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	if r.metrics == nil {
		return nil
	}
	switch e := event.(type) {
	case *workflow.OrderCreated:
		r.metrics.RecordOrderCreated(ctx, string(e.OrderType))
	case *workflow.StepCompleted:
		r.metrics.RecordStepCompleted(ctx, e.StepKey)
	case *automation.TaskClaimed:
		r.metrics.TasksClaimed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task.role", e.RequiredRole)))
	case *sales.SaleCompleted:
		r.metrics.SalesRecorded.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sale.channel", string(e.SaleChannel))))
	case *inventory.LowStock:
		r.metrics.LowStockRaised.Add(ctx, 1, metric.WithAttributes(
			attribute.String(SpanAttrProductID, e.ProductID)))
	}
	return nil
}
