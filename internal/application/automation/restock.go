package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/automation"
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/shared"
)

// EnsureRestockTask raises a warehouse restock task for a low-stock item
// unless one is already open for it. Called by the inventory service after
// a stock mutation commits.
func (s *TaskService) EnsureRestockTask(ctx context.Context, item *inventory.Item) (bool, error) {
	open, err := s.tasks.FindOpenRestockByInventory(ctx, item.ID)
	if err != nil {
		return false, err
	}
	if len(open) > 0 {
		return false, nil
	}

	role := identity.RoleWarehouse
	// System-raised: the zero creator id marks tasks no user initiated.
	_, err = s.CreateTask(ctx, CreateTaskInput{
		Type:         automation.TaskTypeRestock,
		Title:        "Restock " + item.ProductName,
		CreatorID:    uuid.Nil,
		RequiredRole: &role,
		Priority:     automation.PriorityHigh,
		Metadata: shared.JSONMap{
			automation.MetadataKeyInventoryID: item.ID.String(),
			"productId":                       item.ProductID,
			"totalStock":                      item.TotalStock,
			"lowStockThreshold":               item.LowStockThreshold,
		},
	}, shared.SystemActor)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("restock task raised",
		zap.String("product_id", item.ProductID),
		zap.Int("total_stock", item.TotalStock))
	return true, nil
}

// ResolveRestockTasks closes open restock tasks for an item whose stock
// recovered above the threshold. Runs with the system actor.
func (s *TaskService) ResolveRestockTasks(ctx context.Context, item *inventory.Item) error {
	now := time.Now().UTC()
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		open, err := repos.TaskRepo().FindOpenRestockByInventory(ctx, item.ID)
		if err != nil {
			return err
		}
		for _, task := range open {
			task.Complete(now, shared.SystemActor)
			if err := repos.TaskRepo().SaveWithLock(ctx, task); err != nil {
				return err
			}
			closed := automation.NewTaskEvent(task.ID, nil, automation.TaskEventClosed, shared.JSONMap{"reason": "stockRecovered"})
			if err := repos.TaskEventRepo().Append(ctx, closed); err != nil {
				return err
			}
			events = append(events, task.GetDomainEvents()...)
			task.ClearDomainEvents()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events...)
	return nil
}
