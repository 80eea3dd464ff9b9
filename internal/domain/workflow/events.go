package workflow

import (
	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// Event types published by the workflow engine. Step-level events share
// their names with the automation engine; the aggregate type distinguishes
// a workflowStepTask from an automationTask.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.statusChanged"
	EventOrderCompleted     = "order.completed"
	EventStepCompleted      = "task.completed"
	EventStepActivated      = "task.activated"
)

const (
	AggregateOrder    = "order"
	AggregateStepTask = "workflowStepTask"
)

// OrderCreated is published after an order and its step tasks are persisted.
type OrderCreated struct {
	shared.BaseDomainEvent
	OrderType       OrderType `json:"order_type"`
	CreatedByUserID uuid.UUID `json:"created_by_user_id"`
	StepCount       int       `json:"step_count"`
}

// NewOrderCreated creates an order created event
func NewOrderCreated(order *Order, stepCount int, actor shared.EventActor) *OrderCreated {
	return &OrderCreated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderCreated, AggregateOrder, order.ID, actor),
		OrderType:       order.Type,
		CreatedByUserID: order.CreatedByUserID,
		StepCount:       stepCount,
	}
}

// OrderStatusChanged is published on every order status transition.
type OrderStatusChanged struct {
	shared.BaseDomainEvent
	OrderType      OrderType   `json:"order_type"`
	PreviousStatus OrderStatus `json:"previous_status"`
	NewStatus      OrderStatus `json:"new_status"`
}

// NewOrderStatusChanged creates an order status changed event
func NewOrderStatusChanged(order *Order, previous OrderStatus, actor shared.EventActor) *OrderStatusChanged {
	return &OrderStatusChanged{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderStatusChanged, AggregateOrder, order.ID, actor),
		OrderType:       order.Type,
		PreviousStatus:  previous,
		NewStatus:       order.Status,
	}
}

// OrderCompleted is published exactly once when an order reaches completed.
type OrderCompleted struct {
	shared.BaseDomainEvent
	OrderType       OrderType `json:"order_type"`
	CreatedByUserID uuid.UUID `json:"created_by_user_id"`
}

// NewOrderCompleted creates an order completed event
func NewOrderCompleted(order *Order, actor shared.EventActor) *OrderCompleted {
	return &OrderCompleted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderCompleted, AggregateOrder, order.ID, actor),
		OrderType:       order.Type,
		CreatedByUserID: order.CreatedByUserID,
	}
}

// StepCompleted is published when a workflow step task transitions to done.
type StepCompleted struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
	StepKey string    `json:"step_key"`
	Role    string    `json:"role"`
}

// NewStepCompleted creates a step completed event
func NewStepCompleted(task *WorkflowStepTask, actor shared.EventActor) *StepCompleted {
	return &StepCompleted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStepCompleted, AggregateStepTask, task.ID, actor),
		OrderID:         task.OrderID,
		StepKey:         task.StepKey,
		Role:            task.Role,
	}
}

// StepActivated is published when a pending step becomes the active one.
type StepActivated struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
	StepKey string    `json:"step_key"`
	Role    string    `json:"role"`
}

// NewStepActivated creates a step activated event
func NewStepActivated(task *WorkflowStepTask, actor shared.EventActor) *StepActivated {
	return &StepActivated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStepActivated, AggregateStepTask, task.ID, actor),
		OrderID:         task.OrderID,
		StepKey:         task.StepKey,
		Role:            task.Role,
	}
}
