package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/automation"
)

// GormTaskEventRepository implements automation.TaskEventRepository using GORM
type GormTaskEventRepository struct {
	db *gorm.DB
}

// NewGormTaskEventRepository creates a new task event repository
func NewGormTaskEventRepository(db *gorm.DB) *GormTaskEventRepository {
	return &GormTaskEventRepository{db: db}
}

// Append inserts an event row. Rows are never updated or deleted.
func (r *GormTaskEventRepository) Append(ctx context.Context, event *automation.TaskEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByTask returns the task's event trail oldest first
func (r *GormTaskEventRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]*automation.TaskEvent, error) {
	var events []*automation.TaskEvent
	err := r.db.WithContext(ctx).
		Where("automation_task_id = ?", taskID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

var _ automation.TaskEventRepository = (*GormTaskEventRepository)(nil)
