package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// StepStatus is the lifecycle state of a workflow step task.
// Transitions are pending -> active -> done only; skipped is terminal.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusActive  StepStatus = "active"
	StepStatusDone    StepStatus = "done"
	StepStatusSkipped StepStatus = "skipped"
)

// Canonical step keys. The registry composes sequences out of these.
const (
	StepAssembleItems    = "assembleItems"
	StepForemanHandover  = "foremanHandover"
	StepDeliveryReceived = "deliveryReceived"
	StepDeliverItems     = "deliverItems"
	StepConfirmReceived  = "confirmReceived"
	StepAcceptDelivery   = "acceptDelivery"
)

// WorkflowStepTask is one ordered step in an order's fulfilment sequence.
// Exactly one row exists per (order, step key); at most one step per order
// is active at any instant.
type WorkflowStepTask struct {
	shared.BaseEntity
	OrderID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_step_tasks_order_step,priority:1"`
	StepKey        string     `gorm:"size:64;not null;uniqueIndex:idx_step_tasks_order_step,priority:2"`
	Title          string     `gorm:"size:255;not null"`
	Role           string     `gorm:"size:32;not null"`
	Position       int        `gorm:"not null"`
	Required       bool       `gorm:"not null;default:true"`
	Status         StepStatus `gorm:"size:16;not null;index"`
	AssignedUserID *uuid.UUID `gorm:"type:uuid"`
	ActivatedAt    *time.Time
	CompletedAt    *time.Time
	Version        int `gorm:"not null;default:1"`
}

// TableName returns the database table name
func (WorkflowStepTask) TableName() string {
	return "workflow_step_tasks"
}

// IsDone reports whether the step reached a terminal satisfied state
func (t *WorkflowStepTask) IsDone() bool {
	return t.Status == StepStatusDone || t.Status == StepStatusSkipped
}

// BuildStepTasks instantiates the registry sequence for an order. The first
// step is active, the rest pending.
func BuildStepTasks(order *Order, now time.Time) []*WorkflowStepTask {
	defs := StepsFor(order.Type)
	tasks := make([]*WorkflowStepTask, 0, len(defs))
	for i, def := range defs {
		task := &WorkflowStepTask{
			BaseEntity: shared.NewBaseEntity(),
			OrderID:    order.ID,
			StepKey:    def.Key,
			Title:      def.Title,
			Role:       string(def.Role),
			Position:   i,
			Required:   def.Required,
			Status:     StepStatusPending,
			Version:    1,
		}
		if i == 0 {
			task.Status = StepStatusActive
			activated := now
			task.ActivatedAt = &activated
		}
		tasks = append(tasks, task)
	}
	return tasks
}
