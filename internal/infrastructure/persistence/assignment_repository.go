package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormAssignmentRepository implements automation.AssignmentRepository using GORM
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewGormAssignmentRepository creates a new assignment repository
func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// Create inserts a new assignment
func (r *GormAssignmentRepository) Create(ctx context.Context, assignment *automation.TaskAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// Save persists the full assignment row
func (r *GormAssignmentRepository) Save(ctx context.Context, assignment *automation.TaskAssignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// FindByID retrieves an assignment by its ID
func (r *GormAssignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*automation.TaskAssignment, error) {
	var assignment automation.TaskAssignment
	err := r.db.WithContext(ctx).First(&assignment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("assignment not found")
		}
		return nil, err
	}
	return &assignment, nil
}

// FindByTask returns the task's assignments in creation order
func (r *GormAssignmentRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]*automation.TaskAssignment, error) {
	var assignments []*automation.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("automation_task_id = ?", taskID).
		Order("assigned_at ASC, id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// FindByTaskAndUser returns the user's assignments on the task
func (r *GormAssignmentRepository) FindByTaskAndUser(ctx context.Context, taskID uuid.UUID, userID uuid.UUID) ([]*automation.TaskAssignment, error) {
	var assignments []*automation.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("automation_task_id = ? AND user_id = ?", taskID, userID).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// FindByOrderAndRole returns assignments with the role hint across all of
// the order's automation tasks
func (r *GormAssignmentRepository) FindByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*automation.TaskAssignment, error) {
	var assignments []*automation.TaskAssignment
	err := r.db.WithContext(ctx).
		Joins("JOIN automation_tasks at ON at.id = task_assignments.automation_task_id").
		Where("at.related_order_id = ? AND task_assignments.role_hint = ?", orderID, role).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// FindByUser returns a page of the user's assignments, newest first
func (r *GormAssignmentRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*automation.TaskAssignment], error) {
	query := r.db.WithContext(ctx).Model(&automation.TaskAssignment{}).
		Where("user_id = ?", userID)
	if filter.OrderBy == "" {
		filter.OrderBy = "assigned_at"
	}
	return findPage[*automation.TaskAssignment](query, filter)
}

var _ automation.AssignmentRepository = (*GormAssignmentRepository)(nil)
