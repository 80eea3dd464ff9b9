package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// LoadOptions declares which task associations to fetch eagerly. Callers
// name what they need instead of relying on lazy loading.
type LoadOptions struct {
	WithAssignments bool
	WithEvents      bool
}

// TaskFilter narrows task listings. Visibility describes the caller so the
// repository can apply the non-admin predicate in a single query.
type TaskFilter struct {
	shared.Filter
	Status     *TaskStatus
	Type       *TaskType
	CreatorID  *uuid.UUID
	Visibility *TaskVisibility
}

// TaskVisibility is the non-admin scope: tasks the user created, tasks the
// user is assigned to, and completed tasks matching one of the user's roles.
type TaskVisibility struct {
	UserID uuid.UUID
	Roles  identity.RoleSet
}

// TaskRepository persists automation tasks
type TaskRepository interface {
	Create(ctx context.Context, task *AutomationTask) error
	FindByID(ctx context.Context, id uuid.UUID, opts LoadOptions) (*AutomationTask, error)
	// LockByID loads the task under a row lock inside the current transaction
	LockByID(ctx context.Context, id uuid.UUID) (*AutomationTask, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID, opts LoadOptions) ([]*AutomationTask, error)
	FindRootByOrder(ctx context.Context, orderID uuid.UUID, opts LoadOptions) (*AutomationTask, error)
	// FindActiveByOrderAndRole returns order-linked tasks for the role that
	// are still open, claimed, in progress or pending
	FindActiveByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*AutomationTask, error)
	// FindOpenRestockByInventory returns active restock tasks whose metadata
	// references the inventory row
	FindOpenRestockByInventory(ctx context.Context, inventoryID uuid.UUID) ([]*AutomationTask, error)
	// ClaimIfUnclaimed performs the guarded claim transition. Zero rows
	// updated means the claim race was lost.
	ClaimIfUnclaimed(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error)
	// SaveWithLock updates the task guarded by its previous version
	SaveWithLock(ctx context.Context, task *AutomationTask) error
	Save(ctx context.Context, task *AutomationTask) error
	List(ctx context.Context, filter TaskFilter) (shared.Paginated[*AutomationTask], error)
	// AvailableForRole returns open unclaimed tasks for the role that have
	// no operational-role assignments yet
	AvailableForRole(ctx context.Context, role identity.OperationalRole) ([]*AutomationTask, error)
}

// AssignmentRepository persists task assignments
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *TaskAssignment) error
	Save(ctx context.Context, assignment *TaskAssignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*TaskAssignment, error)
	FindByTask(ctx context.Context, taskID uuid.UUID) ([]*TaskAssignment, error)
	FindByTaskAndUser(ctx context.Context, taskID uuid.UUID, userID uuid.UUID) ([]*TaskAssignment, error)
	// FindByOrderAndRole returns assignments with the role hint across all of
	// the order's automation tasks
	FindByOrderAndRole(ctx context.Context, orderID uuid.UUID, role identity.OperationalRole) ([]*TaskAssignment, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*TaskAssignment], error)
}

// TaskEventRepository appends to and reads the automation audit trail
type TaskEventRepository interface {
	Append(ctx context.Context, event *TaskEvent) error
	FindByTask(ctx context.Context, taskID uuid.UUID) ([]*TaskEvent, error)
}
