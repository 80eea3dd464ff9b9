package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// GormStepTaskRepository implements workflow.StepTaskRepository using GORM
type GormStepTaskRepository struct {
	db *gorm.DB
}

// NewGormStepTaskRepository creates a new step task repository
func NewGormStepTaskRepository(db *gorm.DB) *GormStepTaskRepository {
	return &GormStepTaskRepository{db: db}
}

// CreateBatch inserts an order's step tasks in one statement
func (r *GormStepTaskRepository) CreateBatch(ctx context.Context, tasks []*workflow.WorkflowStepTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&tasks).Error
}

// FindByID retrieves a step task by its ID
func (r *GormStepTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.WorkflowStepTask, error) {
	var task workflow.WorkflowStepTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("workflow step not found")
		}
		return nil, err
	}
	return &task, nil
}

// FindByOrder returns the order's steps sorted by position
func (r *GormStepTaskRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*workflow.WorkflowStepTask, error) {
	var tasks []*workflow.WorkflowStepTask
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// CompleteActive performs the guarded active-to-done transition in a single
// conditional UPDATE. The status and assignee predicates make the transition
// race-free without a prior SELECT; zero rows means the guard failed and the
// caller classifies the outcome from a fresh read.
func (r *GormStepTaskRepository) CompleteActive(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&workflow.WorkflowStepTask{}).
		Where("id = ? AND status = ? AND (assigned_user_id IS NULL OR assigned_user_id = ?)",
			taskID, workflow.StepStatusActive, userID).
		Updates(map[string]interface{}{
			"status":           workflow.StepStatusDone,
			"assigned_user_id": userID,
			"completed_at":     now,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActivateIfPending performs the guarded pending-to-active transition
func (r *GormStepTaskRepository) ActivateIfPending(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&workflow.WorkflowStepTask{}).
		Where("id = ? AND status = ?", taskID, workflow.StepStatusPending).
		Updates(map[string]interface{}{
			"status":       workflow.StepStatusActive,
			"activated_at": now,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Save persists the full step task row
func (r *GormStepTaskRepository) Save(ctx context.Context, task *workflow.WorkflowStepTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

var _ workflow.StepTaskRepository = (*GormStepTaskRepository)(nil)
