package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// TaskStatus is the lifecycle state of an automation task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusInProgress TaskStatus = "inProgress"
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ActiveTaskStatuses are the states in which a task still represents
// outstanding work.
var ActiveTaskStatuses = []TaskStatus{TaskStatusOpen, TaskStatusClaimed, TaskStatusInProgress, TaskStatusPending}

// TaskType classifies what an automation task coordinates.
type TaskType string

const (
	// TaskTypeOrder is the single order-root task per order
	TaskTypeOrder TaskType = "order"
	// TaskTypeRole is a role's claimable slice of an order
	TaskTypeRole TaskType = "role"
	// TaskTypeRestock is a warehouse task raised by the low-stock trigger
	TaskTypeRestock TaskType = "restock"
)

// TaskPriority orders tasks in role queues.
type TaskPriority string

const (
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// MetadataKeyInventoryID marks restock tasks with the inventory row that
// raised them; the low-stock trigger queries on it to avoid duplicates.
const MetadataKeyInventoryID = "inventoryId"

// AutomationTask is a claimable unit of coordination work. Order-linked
// tasks exist in two shapes: exactly one root task per order, and non-root
// role tasks carrying a required role.
type AutomationTask struct {
	shared.BaseAggregateRoot
	Type            TaskType                  `gorm:"size:32;not null;index"`
	Status          TaskStatus                `gorm:"size:16;not null;index"`
	Priority        TaskPriority              `gorm:"size:16;not null;default:normal"`
	Title           string                    `gorm:"size:255;not null"`
	CreatedByUserID uuid.UUID                 `gorm:"type:uuid;not null;index"`
	RelatedOrderID  *uuid.UUID                `gorm:"type:uuid;index"`
	RequiredRole    *identity.OperationalRole `gorm:"size:32"`
	ClaimedByUserID *uuid.UUID                `gorm:"type:uuid"`
	ClaimedAt       *time.Time
	IsOrderRoot     bool `gorm:"not null;default:false"`
	CompletedAt     *time.Time
	Metadata        shared.JSONMap `gorm:"type:jsonb"`

	Assignments []*TaskAssignment `gorm:"foreignKey:AutomationTaskID"`
	Events      []*TaskEvent      `gorm:"foreignKey:AutomationTaskID"`
}

// TableName returns the database table name
func (AutomationTask) TableName() string {
	return "automation_tasks"
}

// NewTask creates an automation task. Tasks with a required role start open
// for claiming; everything else starts pending.
func NewTask(taskType TaskType, title string, createdBy uuid.UUID) *AutomationTask {
	return &AutomationTask{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              taskType,
		Status:            TaskStatusPending,
		Priority:          PriorityNormal,
		Title:             title,
		CreatedByUserID:   createdBy,
	}
}

// IsActive reports whether the task still represents outstanding work
func (t *AutomationTask) IsActive() bool {
	for _, s := range ActiveTaskStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// InventoryID extracts the inventory reference from restock task metadata
func (t *AutomationTask) InventoryID() (uuid.UUID, bool) {
	raw, ok := t.Metadata[MetadataKeyInventoryID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Complete transitions the task to completed with the given actor
func (t *AutomationTask) Complete(now time.Time, actor shared.EventActor) {
	t.Status = TaskStatusCompleted
	completed := now
	t.CompletedAt = &completed
	t.IncrementVersion()
	t.AddDomainEvent(NewTaskCompleted(t, actor))
}

// Cancel soft-deletes the task by transitioning it to cancelled
func (t *AutomationTask) Cancel(actor shared.EventActor) {
	t.Status = TaskStatusCancelled
	t.IncrementVersion()
}
