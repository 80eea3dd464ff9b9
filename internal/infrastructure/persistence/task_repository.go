package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormTaskRepository implements automation.TaskRepository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new task repository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) withOptions(ctx context.Context, opts automation.LoadOptions) *gorm.DB {
	query := r.db.WithContext(ctx)
	if opts.WithAssignments {
		query = query.Preload("Assignments")
	}
	if opts.WithEvents {
		query = query.Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	}
	return query
}

// Create inserts a new automation task
func (r *GormTaskRepository) Create(ctx context.Context, task *automation.AutomationTask) error {
	return r.db.WithContext(ctx).Omit("Assignments", "Events").Create(task).Error
}

// FindByID retrieves a task by its ID with the requested associations
func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID, opts automation.LoadOptions) (*automation.AutomationTask, error) {
	var task automation.AutomationTask
	err := r.withOptions(ctx, opts).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("task not found")
		}
		return nil, err
	}
	return &task, nil
}

// LockByID loads the task under FOR UPDATE inside the current transaction
func (r *GormTaskRepository) LockByID(ctx context.Context, id uuid.UUID) (*automation.AutomationTask, error) {
	var task automation.AutomationTask
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("task not found")
		}
		return nil, err
	}
	return &task, nil
}

// FindByOrder returns all tasks linked to the order
func (r *GormTaskRepository) FindByOrder(ctx context.Context, orderID uuid.UUID, opts automation.LoadOptions) ([]*automation.AutomationTask, error) {
	var tasks []*automation.AutomationTask
	err := r.withOptions(ctx, opts).
		Where("related_order_id = ?", orderID).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindRootByOrder returns the order's single root task
func (r *GormTaskRepository) FindRootByOrder(ctx context.Context, orderID uuid.UUID, opts automation.LoadOptions) (*automation.AutomationTask, error) {
	var task automation.AutomationTask
	err := r.withOptions(ctx, opts).
		Where("related_order_id = ? AND is_order_root = ?", orderID, true).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("order root task not found")
		}
		return nil, err
	}
	return &task, nil
}

// FindActiveByOrderAndRole returns the order's still-active tasks requiring
// the given role
func (r *GormTaskRepository) FindActiveByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*automation.AutomationTask, error) {
	var tasks []*automation.AutomationTask
	err := r.db.WithContext(ctx).
		Where("related_order_id = ? AND required_role = ? AND status IN ?",
			orderID, role, automation.ActiveTaskStatuses).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindOpenRestockByInventory returns active restock tasks raised for the
// inventory row. Relies on the jsonb metadata column.
func (r *GormTaskRepository) FindOpenRestockByInventory(ctx context.Context, inventoryID uuid.UUID) ([]*automation.AutomationTask, error) {
	var tasks []*automation.AutomationTask
	err := r.db.WithContext(ctx).
		Where("type = ? AND status IN ? AND metadata ->> ? = ?",
			automation.TaskTypeRestock, automation.ActiveTaskStatuses,
			automation.MetadataKeyInventoryID, inventoryID.String()).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ClaimIfUnclaimed performs the guarded claim transition. The predicate keeps
// two concurrent claimers from both succeeding; zero rows means the race was
// lost.
func (r *GormTaskRepository) ClaimIfUnclaimed(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&automation.AutomationTask{}).
		Where("id = ? AND status IN ? AND claimed_by_user_id IS NULL",
			taskID, []automation.TaskStatus{automation.TaskStatusOpen, automation.TaskStatusPending}).
		Updates(map[string]interface{}{
			"status":             automation.TaskStatusClaimed,
			"claimed_by_user_id": userID,
			"claimed_at":         now,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveWithLock updates the task guarded by its previous version
func (r *GormTaskRepository) SaveWithLock(ctx context.Context, task *automation.AutomationTask) error {
	result := r.db.WithContext(ctx).Model(task).
		Where("id = ? AND version = ?", task.ID, task.Version-1).
		Updates(map[string]interface{}{
			"status":             task.Status,
			"priority":           task.Priority,
			"title":              task.Title,
			"claimed_by_user_id": task.ClaimedByUserID,
			"claimed_at":         task.ClaimedAt,
			"completed_at":       task.CompletedAt,
			"metadata":           task.Metadata,
			"version":            task.Version,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("task was modified by another transaction")
	}
	return nil
}

// Save persists the full task row
func (r *GormTaskRepository) Save(ctx context.Context, task *automation.AutomationTask) error {
	return r.db.WithContext(ctx).Omit("Assignments", "Events").Save(task).Error
}

// List returns a page of tasks matching the filter. When a visibility scope
// is present the non-admin predicate is pushed into the query: tasks the
// user created, tasks the user is assigned to, and completed tasks matching
// one of the user's roles.
func (r *GormTaskRepository) List(ctx context.Context, filter automation.TaskFilter) (shared.Paginated[*automation.AutomationTask], error) {
	query := r.db.WithContext(ctx).Model(&automation.AutomationTask{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.CreatorID != nil {
		query = query.Where("created_by_user_id = ?", *filter.CreatorID)
	}
	if filter.Visibility != nil {
		vis := filter.Visibility
		assigned := "EXISTS (SELECT 1 FROM task_assignments ta WHERE ta.automation_task_id = automation_tasks.id AND ta.user_id = ?)"
		if roles := vis.Roles.Strings(); len(roles) > 0 {
			query = query.Where(
				"created_by_user_id = ? OR claimed_by_user_id = ? OR "+assigned+" OR (status = ? AND required_role IN ?)",
				vis.UserID, vis.UserID, vis.UserID, automation.TaskStatusCompleted, roles)
		} else {
			query = query.Where(
				"created_by_user_id = ? OR claimed_by_user_id = ? OR "+assigned,
				vis.UserID, vis.UserID, vis.UserID)
		}
	}
	return findPage[*automation.AutomationTask](query, filter.Filter)
}

// AvailableForRole returns the role's claimable queue: open unclaimed tasks
// requiring the role with no user-bound operational assignment yet. High
// priority sorts first, then oldest first.
func (r *GormTaskRepository) AvailableForRole(ctx context.Context, role identity.OperationalRole) ([]*automation.AutomationTask, error) {
	var tasks []*automation.AutomationTask
	err := r.db.WithContext(ctx).
		Where("required_role = ? AND status = ? AND claimed_by_user_id IS NULL", role, automation.TaskStatusOpen).
		Where("NOT EXISTS (SELECT 1 FROM task_assignments ta WHERE ta.automation_task_id = automation_tasks.id AND ta.user_id IS NOT NULL AND ta.role_hint IN ?)",
			[]identity.OperationalRole{identity.RoleForeman, identity.RoleDelivery}).
		Order("CASE priority WHEN 'high' THEN 0 ELSE 1 END, created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

var _ automation.TaskRepository = (*GormTaskRepository)(nil)
