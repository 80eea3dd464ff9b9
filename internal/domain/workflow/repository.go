package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	shared.Filter
	Type            *OrderType
	Status          *OrderStatus
	CreatedByUserID *uuid.UUID
}

// OrderRepository persists orders
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// SaveWithLock updates the order guarded by its previous version and
	// returns ErrConcurrencyConflict when the guard misses
	SaveWithLock(ctx context.Context, order *Order) error
	List(ctx context.Context, filter OrderFilter) (shared.Paginated[*Order], error)
}

// StepTaskRepository persists workflow step tasks
type StepTaskRepository interface {
	CreateBatch(ctx context.Context, tasks []*WorkflowStepTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*WorkflowStepTask, error)
	// FindByOrder returns the order's steps sorted by position
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*WorkflowStepTask, error)
	// CompleteActive performs the guarded transition to done. It reports
	// whether a row was updated; zero rows means the guard failed and the
	// caller must re-read to classify the outcome.
	CompleteActive(ctx context.Context, taskID uuid.UUID, userID uuid.UUID, now time.Time) (bool, error)
	// ActivateIfPending performs the guarded transition to active
	ActivateIfPending(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error)
	Save(ctx context.Context, task *WorkflowStepTask) error
}
