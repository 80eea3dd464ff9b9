package automation

import (
	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// Event types published by the automation engine.
const (
	EventTaskCreated         = "task.created"
	EventTaskOpened          = "task.opened"
	EventTaskClaimed         = "task.claimed"
	EventTaskReassigned      = "task.reassigned"
	EventTaskCompleted       = "task.completed"
	EventAutomationTriggered = "automation.triggered"
	EventAutomationFailed    = "automation.failed"
)

// AggregateTask names automation tasks in event envelopes.
const AggregateTask = "automationTask"

// TaskCreated is published after a task and its assignments are persisted.
type TaskCreated struct {
	shared.BaseDomainEvent
	TaskType       TaskType   `json:"task_type"`
	Title          string     `json:"title"`
	RelatedOrderID *uuid.UUID `json:"related_order_id,omitempty"`
	RequiredRole   string     `json:"required_role,omitempty"`
	IsOrderRoot    bool       `json:"is_order_root"`
}

// NewTaskCreated creates a task created event
func NewTaskCreated(task *AutomationTask, actor shared.EventActor) *TaskCreated {
	e := &TaskCreated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTaskCreated, AggregateTask, task.ID, actor),
		TaskType:        task.Type,
		Title:           task.Title,
		RelatedOrderID:  task.RelatedOrderID,
		IsOrderRoot:     task.IsOrderRoot,
	}
	if task.RequiredRole != nil {
		e.RequiredRole = string(*task.RequiredRole)
	}
	return e
}

// TaskOpened is published when a role task becomes claimable.
type TaskOpened struct {
	shared.BaseDomainEvent
	RequiredRole   string     `json:"required_role"`
	RelatedOrderID *uuid.UUID `json:"related_order_id,omitempty"`
	Title          string     `json:"title"`
}

// NewTaskOpened creates a task opened event
func NewTaskOpened(task *AutomationTask, actor shared.EventActor) *TaskOpened {
	e := &TaskOpened{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTaskOpened, AggregateTask, task.ID, actor),
		RelatedOrderID:  task.RelatedOrderID,
		Title:           task.Title,
	}
	if task.RequiredRole != nil {
		e.RequiredRole = string(*task.RequiredRole)
	}
	return e
}

// TaskClaimed is published after a successful claim.
type TaskClaimed struct {
	shared.BaseDomainEvent
	ClaimedByUserID uuid.UUID  `json:"claimed_by_user_id"`
	RequiredRole    string     `json:"required_role,omitempty"`
	RelatedOrderID  *uuid.UUID `json:"related_order_id,omitempty"`
	PriorClaimerID  *uuid.UUID `json:"prior_claimer_id,omitempty"`
}

// NewTaskClaimed creates a task claimed event
func NewTaskClaimed(task *AutomationTask, claimer uuid.UUID, prior *uuid.UUID, actor shared.EventActor) *TaskClaimed {
	e := &TaskClaimed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTaskClaimed, AggregateTask, task.ID, actor),
		ClaimedByUserID: claimer,
		RelatedOrderID:  task.RelatedOrderID,
		PriorClaimerID:  prior,
	}
	if task.RequiredRole != nil {
		e.RequiredRole = string(*task.RequiredRole)
	}
	return e
}

// TaskReassigned is published on admin override and explicit reassignment.
type TaskReassigned struct {
	shared.BaseDomainEvent
	FromUserID *uuid.UUID `json:"from_user_id,omitempty"`
	ToUserID   uuid.UUID  `json:"to_user_id"`
}

// NewTaskReassigned creates a task reassigned event
func NewTaskReassigned(task *AutomationTask, from *uuid.UUID, to uuid.UUID, actor shared.EventActor) *TaskReassigned {
	return &TaskReassigned{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTaskReassigned, AggregateTask, task.ID, actor),
		FromUserID:      from,
		ToUserID:        to,
	}
}

// TaskCompleted is published when a task reaches completed, including
// cascade completions driven by the order root.
type TaskCompleted struct {
	shared.BaseDomainEvent
	TaskType       TaskType   `json:"task_type"`
	RelatedOrderID *uuid.UUID `json:"related_order_id,omitempty"`
	IsOrderRoot    bool       `json:"is_order_root"`
}

// NewTaskCompleted creates a task completed event
func NewTaskCompleted(task *AutomationTask, actor shared.EventActor) *TaskCompleted {
	return &TaskCompleted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTaskCompleted, AggregateTask, task.ID, actor),
		TaskType:        task.Type,
		RelatedOrderID:  task.RelatedOrderID,
		IsOrderRoot:     task.IsOrderRoot,
	}
}

// AutomationFailed is published when an order trigger could not build its
// automation surface. Order creation is never rolled back for it.
type AutomationFailed struct {
	shared.BaseDomainEvent
	Reason  string    `json:"reason"`
	OrderID uuid.UUID `json:"order_id"`
}

// NewAutomationFailed creates an automation failed event
func NewAutomationFailed(orderID uuid.UUID, reason string) *AutomationFailed {
	return &AutomationFailed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventAutomationFailed, AggregateTask, orderID, shared.SystemActor),
		Reason:          reason,
		OrderID:         orderID,
	}
}
