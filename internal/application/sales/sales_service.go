package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appinventory "github.com/opsflow/backend/internal/application/inventory"
	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
)

// StockLevelWatcher receives the item after a committed stock change so the
// low-stock reactions run post-commit. The inventory service implements it.
type StockLevelWatcher interface {
	StockLevelChanged(ctx context.Context, item *inventory.Item)
}

// NoOpStockLevelWatcher ignores stock changes.
type NoOpStockLevelWatcher struct{}

// StockLevelChanged does nothing
func (NoOpStockLevelWatcher) StockLevelChanged(context.Context, *inventory.Item) {}

// RecordSaleInput carries the sale parameters.
type RecordSaleInput struct {
	ProductID      string
	Quantity       int
	UnitPrice      decimal.Decimal
	SoldBy         uuid.UUID
	SaleChannel    string
	RelatedOrderID *uuid.UUID
	IdempotencyKey *string
	CustomerName   string
}

// Service records sales and serves the reporting aggregates.
type Service struct {
	scope          TransactionScope
	sales          sales.SaleRepository
	stockWatcher   StockLevelWatcher
	eventPublisher shared.EventPublisher
	logger         *zap.Logger

	commissionThreshold decimal.Decimal
	excludedProducts    map[string]bool
}

// NewService creates a sales Service
func NewService(scope TransactionScope, saleRepo sales.SaleRepository, logger *zap.Logger) *Service {
	return &Service{
		scope:               scope,
		sales:               saleRepo,
		stockWatcher:        NoOpStockLevelWatcher{},
		logger:              logger,
		commissionThreshold: decimal.Zero,
		excludedProducts:    map[string]bool{},
	}
}

// SetEventPublisher sets the event publisher
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetStockLevelWatcher wires the post-commit low-stock reactions
func (s *Service) SetStockLevelWatcher(watcher StockLevelWatcher) {
	s.stockWatcher = watcher
}

// SetCommissionPolicy configures sale classification
func (s *Service) SetCommissionPolicy(amountThreshold decimal.Decimal, excludedProducts []string) {
	s.commissionThreshold = amountThreshold
	s.excludedProducts = make(map[string]bool, len(excludedProducts))
	for _, p := range excludedProducts {
		s.excludedProducts[p] = true
	}
}

// RecordSale persists a sale and decrements stock in one transaction. A
// repeated idempotency key returns the original sale with no side effects.
func (s *Service) RecordSale(ctx context.Context, input RecordSaleInput) (*sales.Sale, error) {
	channel, err := sales.ParseChannel(input.SaleChannel)
	if err != nil {
		return nil, err
	}

	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		existing, err := s.sales.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	sale, err := sales.NewSale(input.ProductID, input.Quantity, input.UnitPrice, input.SoldBy, channel)
	if err != nil {
		return nil, err
	}
	sale.RelatedOrderID = input.RelatedOrderID
	sale.IdempotencyKey = input.IdempotencyKey
	sale.CustomerName = input.CustomerName

	var item *inventory.Item
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
			existing, err := repos.SaleRepo().FindByIdempotencyKey(ctx, *input.IdempotencyKey)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			if existing != nil {
				sale = existing
				item = nil
				return nil
			}
		}
		var err error
		item, err = appinventory.ApplySaleDecrement(ctx, repos.ItemRepo(), repos.InventoryTransactionRepo(),
			input.ProductID, input.Quantity, input.SoldBy, sale.ID, input.RelatedOrderID)
		if err != nil {
			return err
		}
		return repos.SaleRepo().Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		// Idempotent replay, nothing changed.
		return sale, nil
	}

	s.stockWatcher.StockLevelChanged(ctx, item)

	if s.eventPublisher != nil {
		actor := shared.EventActor{UserID: input.SoldBy}
		if err := s.eventPublisher.Publish(ctx, sales.NewSaleCompleted(sale, actor)); err != nil {
			s.logger.Warn("failed to publish sale event", zap.Error(err))
		}
	}

	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID.String()),
		zap.String("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("total_amount", sale.TotalAmount.String()))

	return sale, nil
}

// GetSale loads one sale
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	return s.sales.FindByID(ctx, id)
}

// ListSales returns a filtered page of sales
func (s *Service) ListSales(ctx context.Context, filter sales.SaleFilter) (shared.Paginated[*sales.Sale], error) {
	return s.sales.List(ctx, filter)
}

// Summary returns the aggregate over a date range
func (s *Service) Summary(ctx context.Context, dateRange *sales.DateRange) (*sales.Summary, error) {
	return s.sales.Summary(ctx, dateRange)
}

// AgentPerformance returns per-seller aggregates over a date range
func (s *Service) AgentPerformance(ctx context.Context, dateRange *sales.DateRange) ([]*sales.SellerPerformance, error) {
	return s.sales.AgentPerformance(ctx, dateRange)
}

// ClassifySale decides commission eligibility for a stored sale
func (s *Service) ClassifySale(ctx context.Context, saleID uuid.UUID) (*sales.Classification, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	classification := sales.Classify(sale, s.commissionThreshold, s.excludedProducts)
	return &classification, nil
}
