package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// AssignmentStatus is the lifecycle state of a task assignment.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusInProgress AssignmentStatus = "inProgress"
	AssignmentStatusDone       AssignmentStatus = "done"
	AssignmentStatusSkipped    AssignmentStatus = "skipped"
)

// TaskAssignment is one person's (or one role's, while unbound) share of an
// automation task. A null user ID is a role placeholder that binds to a
// concrete user on first claim.
type TaskAssignment struct {
	shared.BaseEntity
	AutomationTaskID uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_task_user_role,priority:1"`
	UserID           *uuid.UUID               `gorm:"type:uuid;uniqueIndex:idx_assignments_task_user_role,priority:2"`
	RoleHint         identity.OperationalRole `gorm:"size:32;not null;uniqueIndex:idx_assignments_task_user_role,priority:3"`
	Status           AssignmentStatus         `gorm:"size:16;not null;index"`
	Notes            string                   `gorm:"type:text"`
	AssignedAt       time.Time                `gorm:"not null"`
	CompletedAt      *time.Time
}

// TableName returns the database table name
func (TaskAssignment) TableName() string {
	return "task_assignments"
}

// NewPlaceholderAssignment creates an unbound assignment for a role
func NewPlaceholderAssignment(taskID uuid.UUID, role identity.OperationalRole, now time.Time) *TaskAssignment {
	return &TaskAssignment{
		BaseEntity:       shared.NewBaseEntity(),
		AutomationTaskID: taskID,
		RoleHint:         role,
		Status:           AssignmentStatusPending,
		AssignedAt:       now,
	}
}

// NewUserAssignment creates an assignment bound to a user
func NewUserAssignment(taskID uuid.UUID, userID uuid.UUID, role identity.OperationalRole, now time.Time) *TaskAssignment {
	uid := userID
	return &TaskAssignment{
		BaseEntity:       shared.NewBaseEntity(),
		AutomationTaskID: taskID,
		UserID:           &uid,
		RoleHint:         role,
		Status:           AssignmentStatusInProgress,
		AssignedAt:       now,
	}
}

// IsDone reports whether the assignment is satisfied
func (a *TaskAssignment) IsDone() bool {
	return a.Status == AssignmentStatusDone || a.Status == AssignmentStatusSkipped
}

// BindUser attaches a concrete user to a placeholder and moves it in progress
func (a *TaskAssignment) BindUser(userID uuid.UUID) {
	uid := userID
	a.UserID = &uid
	if a.Status == AssignmentStatusPending {
		a.Status = AssignmentStatusInProgress
	}
}

// MarkDone completes the assignment
func (a *TaskAssignment) MarkDone(now time.Time) {
	a.Status = AssignmentStatusDone
	completed := now
	a.CompletedAt = &completed
}
