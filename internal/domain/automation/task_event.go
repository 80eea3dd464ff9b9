package automation

import (
	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// TaskEventType classifies entries in the automation audit trail.
type TaskEventType string

const (
	TaskEventCreated       TaskEventType = "created"
	TaskEventOpened        TaskEventType = "opened"
	TaskEventClaimed       TaskEventType = "claimed"
	TaskEventReassigned    TaskEventType = "reassigned"
	TaskEventAssigned      TaskEventType = "assigned"
	TaskEventStepCompleted TaskEventType = "stepCompleted"
	TaskEventClosed        TaskEventType = "closed"
	TaskEventCancelled     TaskEventType = "cancelled"
)

// TaskEvent is one append-only audit row on an automation task. Rows are
// never updated or deleted.
type TaskEvent struct {
	shared.BaseEntity
	AutomationTaskID uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID           *uuid.UUID     `gorm:"type:uuid"`
	EventType        TaskEventType  `gorm:"size:32;not null"`
	Metadata         shared.JSONMap `gorm:"type:jsonb"`
}

// TableName returns the database table name
func (TaskEvent) TableName() string {
	return "task_events"
}

// NewTaskEvent creates an audit row for a task. A nil userID records a
// system-initiated transition.
func NewTaskEvent(taskID uuid.UUID, userID *uuid.UUID, eventType TaskEventType, metadata shared.JSONMap) *TaskEvent {
	return &TaskEvent{
		BaseEntity:       shared.NewBaseEntity(),
		AutomationTaskID: taskID,
		UserID:           userID,
		EventType:        eventType,
		Metadata:         metadata,
	}
}
