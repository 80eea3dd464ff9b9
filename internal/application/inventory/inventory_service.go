package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/shared"
)

// Service handles inventory operations. Every stock mutation runs as one
// transaction writing the item under a version guard plus its audit row,
// with the low-stock hook invoked after commit.
type Service struct {
	scope          TransactionScope
	items          inventory.ItemRepository
	transactions   inventory.TransactionRepository
	restockTasks   RestockTaskManager
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates an inventory Service
func NewService(scope TransactionScope, items inventory.ItemRepository, transactions inventory.TransactionRepository, logger *zap.Logger) *Service {
	return &Service{
		scope:        scope,
		items:        items,
		transactions: transactions,
		restockTasks: NoOpRestockTaskManager{},
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetRestockTaskManager wires the automation engine's restock reactions
func (s *Service) SetRestockTaskManager(manager RestockTaskManager) {
	s.restockTasks = manager
}

// CreateItem registers a product's stock record. A positive initial stock
// writes a restock transaction in the same unit.
func (s *Service) CreateItem(ctx context.Context, productID, name string, initialStock, lowStockThreshold int, performedBy uuid.UUID) (*inventory.Item, error) {
	item, err := inventory.NewItem(productID, name, initialStock, lowStockThreshold)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.ItemRepo().FindByProductID(ctx, productID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if existing != nil {
			return shared.ErrConflict.WithMessage("product " + productID + " already has an inventory record")
		}
		if err := repos.ItemRepo().Create(ctx, item); err != nil {
			return err
		}
		if initialStock > 0 {
			tx := inventory.NewTransaction(item.ID, initialStock, inventory.ReasonRestock, performedBy, "initial stock")
			return repos.TransactionRepo().Create(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterStockChange(ctx, item)
	return item, nil
}

// Restock adds stock to a product
func (s *Service) Restock(ctx context.Context, productID string, quantity int, performedBy uuid.UUID, notes string) (*inventory.Item, error) {
	var item *inventory.Item
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.ItemRepo().FindByProductID(ctx, productID)
		if err != nil {
			return err
		}
		if err := item.AddStock(quantity); err != nil {
			return err
		}
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		tx := inventory.NewTransaction(item.ID, quantity, inventory.ReasonRestock, performedBy, notes)
		return repos.TransactionRepo().Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.afterStockChange(ctx, item)
	s.logger.Info("stock replenished",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("total_stock", item.TotalStock))
	return item, nil
}

// Adjust applies a signed stock correction
func (s *Service) Adjust(ctx context.Context, productID string, delta int, reason inventory.TransactionReason, performedBy uuid.UUID, notes string) (*inventory.Item, error) {
	if _, err := inventory.ParseAdjustmentReason(string(reason)); err != nil {
		return nil, err
	}

	var item *inventory.Item
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.ItemRepo().FindByProductID(ctx, productID)
		if err != nil {
			return err
		}
		if err := item.Adjust(delta); err != nil {
			return err
		}
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		tx := inventory.NewTransaction(item.ID, delta, reason, performedBy, notes)
		return repos.TransactionRepo().Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.afterStockChange(ctx, item)
	return item, nil
}

// DecrementForSale removes sold stock. Internal to the sales flow.
func (s *Service) DecrementForSale(ctx context.Context, productID string, quantity int, performedBy uuid.UUID, saleID uuid.UUID, relatedOrderID *uuid.UUID) (*inventory.Item, error) {
	var item *inventory.Item
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = ApplySaleDecrement(ctx, repos.ItemRepo(), repos.TransactionRepo(), productID, quantity, performedBy, saleID, relatedOrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStockChange(ctx, item)
	return item, nil
}

// ApplySaleDecrement performs the sale-side stock mutation against already
// transaction-scoped repositories. The sales service calls it inside its
// own transaction so the sale row and the stock change commit together.
func ApplySaleDecrement(ctx context.Context, items inventory.ItemRepository, transactions inventory.TransactionRepository, productID string, quantity int, performedBy uuid.UUID, saleID uuid.UUID, relatedOrderID *uuid.UUID) (*inventory.Item, error) {
	item, err := items.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := item.DecrementForSale(quantity); err != nil {
		return nil, err
	}
	if err := items.SaveWithLock(ctx, item); err != nil {
		return nil, err
	}
	tx := inventory.NewTransaction(item.ID, -quantity, inventory.ReasonSale, performedBy, "")
	sale := saleID
	tx.RelatedSaleID = &sale
	tx.RelatedOrderID = relatedOrderID
	if err := transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	return item, nil
}

// SetThreshold changes the low-stock threshold
func (s *Service) SetThreshold(ctx context.Context, productID string, threshold int) (*inventory.Item, error) {
	if threshold < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "threshold cannot be negative")
	}
	var item *inventory.Item
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.ItemRepo().FindByProductID(ctx, productID)
		if err != nil {
			return err
		}
		item.LowStockThreshold = threshold
		item.IncrementVersion()
		return repos.ItemRepo().SaveWithLock(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.afterStockChange(ctx, item)
	return item, nil
}

// GetByProductID loads one item
func (s *Service) GetByProductID(ctx context.Context, productID string) (*inventory.Item, error) {
	return s.items.FindByProductID(ctx, productID)
}

// List returns a page of items
func (s *Service) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*inventory.Item], error) {
	return s.items.List(ctx, filter)
}

// ListLowStock returns items at or below their threshold
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]*inventory.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.items.ListLowStock(ctx, limit)
}

// ListTransactions returns the stock audit trail
func (s *Service) ListTransactions(ctx context.Context, filter inventory.TransactionFilter) (shared.Paginated[*inventory.Transaction], error) {
	return s.transactions.List(ctx, filter)
}

// StockLevelChanged is the post-commit low-stock hook: below or at the
// threshold it raises a restock task and publishes the low-stock event,
// above it it resolves open restock tasks.
func (s *Service) StockLevelChanged(ctx context.Context, item *inventory.Item) {
	if item.IsLowStock() {
		created, err := s.restockTasks.EnsureRestockTask(ctx, item)
		if err != nil {
			s.logger.Error("failed to raise restock task",
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			return
		}
		if created && s.eventPublisher != nil {
			if err := s.eventPublisher.Publish(ctx, inventory.NewLowStock(item)); err != nil {
				s.logger.Warn("failed to publish low stock event", zap.Error(err))
			}
		}
		return
	}
	if err := s.restockTasks.ResolveRestockTasks(ctx, item); err != nil {
		s.logger.Error("failed to resolve restock tasks",
			zap.String("product_id", item.ProductID),
			zap.Error(err))
	}
}

func (s *Service) afterStockChange(ctx context.Context, item *inventory.Item) {
	s.StockLevelChanged(ctx, item)
}
