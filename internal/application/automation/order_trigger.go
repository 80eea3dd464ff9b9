package automation

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// OrderTrigger builds the automation surface of a new order from its
// template: the root task with its per-role placeholder assignments and the
// initial claimable role tasks. It reacts to published order events, so a
// trigger failure can never roll back the order.
type OrderTrigger struct {
	tasks          *TaskService
	orders         workflow.OrderRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewOrderTrigger creates an OrderTrigger
func NewOrderTrigger(tasks *TaskService, orders workflow.OrderRepository, publisher shared.EventPublisher, logger *zap.Logger) *OrderTrigger {
	return &OrderTrigger{
		tasks:          tasks,
		orders:         orders,
		eventPublisher: publisher,
		logger:         logger,
	}
}

// EventTypes returns the subscribed event types
func (t *OrderTrigger) EventTypes() []string {
	return []string{workflow.EventOrderCreated, workflow.EventOrderStatusChanged}
}

// Handle routes order events to the trigger reactions
func (t *OrderTrigger) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *workflow.OrderCreated:
		return t.handleOrderCreated(ctx, e)
	case *workflow.OrderStatusChanged:
		t.handleOrderStatusChanged(e)
	}
	return nil
}

func (t *OrderTrigger) handleOrderCreated(ctx context.Context, event *workflow.OrderCreated) error {
	order, err := t.orders.FindByID(ctx, event.AggregateID())
	if err != nil {
		return t.fail(ctx, event, "order lookup failed: "+err.Error())
	}
	template, ok := automation.TemplateFor(order.Type)
	if !ok {
		return t.fail(ctx, event, "no automation template for order type "+string(order.Type))
	}

	actor := event.Actor()
	orderID := order.ID

	_, err = t.tasks.CreateTask(ctx, CreateTaskInput{
		Type:           automation.TaskTypeOrder,
		Title:          template.RootTitle,
		CreatorID:      order.CreatedByUserID,
		RelatedOrderID: &orderID,
		IsOrderRoot:    true,
	}, actor)
	if err != nil {
		return t.fail(ctx, event, "root task creation failed: "+err.Error())
	}

	for _, spec := range template.InitialRoleTasks {
		role := spec.Role
		_, err = t.tasks.CreateTask(ctx, CreateTaskInput{
			Type:           automation.TaskTypeRole,
			Title:          spec.Title,
			CreatorID:      order.CreatedByUserID,
			RelatedOrderID: &orderID,
			RequiredRole:   &role,
		}, actor)
		if err != nil {
			return t.fail(ctx, event, "role task creation failed: "+err.Error())
		}
	}

	t.logger.Info("automation tasks created for order",
		zap.String("order_id", orderID.String()),
		zap.String("order_type", string(order.Type)),
		zap.Int("role_tasks", len(template.InitialRoleTasks)))
	return nil
}

// handleOrderStatusChanged is a routing hook for status follow-ups. The
// requester notification on awaitingConfirmation is produced by the
// notification dispatcher from the same event.
func (t *OrderTrigger) handleOrderStatusChanged(event *workflow.OrderStatusChanged) {
	t.logger.Debug("order status changed",
		zap.String("order_id", event.AggregateID().String()),
		zap.String("from", string(event.PreviousStatus)),
		zap.String("to", string(event.NewStatus)))
}

func (t *OrderTrigger) fail(ctx context.Context, event *workflow.OrderCreated, reason string) error {
	t.logger.Error("order trigger failed",
		zap.String("order_id", event.AggregateID().String()),
		zap.String("reason", reason))
	if t.eventPublisher != nil {
		failed := automation.NewAutomationFailed(event.AggregateID(), reason)
		if err := t.eventPublisher.Publish(ctx, failed); err != nil {
			t.logger.Warn("failed to publish automation failure", zap.Error(err))
		}
	}
	return nil
}
