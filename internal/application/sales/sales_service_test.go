package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
)

// MockSaleRepository is a mock implementation of sales.SaleRepository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByIdempotencyKey(ctx context.Context, key string) (*sales.Sale, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Sale), args.Error(1)
}

func (m *MockSaleRepository) List(ctx context.Context, filter sales.SaleFilter) (shared.Paginated[*sales.Sale], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*sales.Sale]), args.Error(1)
}

func (m *MockSaleRepository) Summary(ctx context.Context, dateRange *sales.DateRange) (*sales.Summary, error) {
	args := m.Called(ctx, dateRange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Summary), args.Error(1)
}

func (m *MockSaleRepository) AgentPerformance(ctx context.Context, dateRange *sales.DateRange) ([]*sales.SellerPerformance, error) {
	args := m.Called(ctx, dateRange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sales.SellerPerformance), args.Error(1)
}

// MockItemRepository is a mock implementation of inventory.ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) Create(ctx context.Context, item *inventory.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Item), args.Error(1)
}

func (m *MockItemRepository) FindByProductID(ctx context.Context, productID string) (*inventory.Item, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Item), args.Error(1)
}

func (m *MockItemRepository) SaveWithLock(ctx context.Context, item *inventory.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*inventory.Item], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*inventory.Item]), args.Error(1)
}

func (m *MockItemRepository) ListLowStock(ctx context.Context, limit int) ([]*inventory.Item, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.Item), args.Error(1)
}

// MockTransactionRepository is a mock implementation of inventory.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *inventory.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter inventory.TransactionFilter) (shared.Paginated[*inventory.Transaction], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*inventory.Transaction]), args.Error(1)
}

type capturingPublisher struct {
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type recordingWatcher struct {
	items []*inventory.Item
}

func (w *recordingWatcher) StockLevelChanged(_ context.Context, item *inventory.Item) {
	w.items = append(w.items, item)
}

type salesServiceFixture struct {
	svc       *Service
	sales     *MockSaleRepository
	items     *MockItemRepository
	txs       *MockTransactionRepository
	watcher   *recordingWatcher
	publisher *capturingPublisher
}

func newSalesServiceFixture() *salesServiceFixture {
	f := &salesServiceFixture{
		sales:     new(MockSaleRepository),
		items:     new(MockItemRepository),
		txs:       new(MockTransactionRepository),
		watcher:   &recordingWatcher{},
		publisher: &capturingPublisher{},
	}
	f.svc = NewService(NewNoOpTransactionScope(f.sales, f.items, f.txs), f.sales, zap.NewNop())
	f.svc.SetEventPublisher(f.publisher)
	f.svc.SetStockLevelWatcher(f.watcher)
	return f
}

func TestRecordSale(t *testing.T) {
	f := newSalesServiceFixture()
	soldBy := uuid.New()
	item, err := inventory.NewItem("SKU-100", "Widget", 20, 5)
	require.NoError(t, err)

	f.items.On("FindByProductID", mock.Anything, "SKU-100").Return(item, nil)
	f.items.On("SaveWithLock", mock.Anything, item).Return(nil)
	f.txs.On("Create", mock.Anything, mock.AnythingOfType("*inventory.Transaction")).Return(nil)
	f.sales.On("Create", mock.Anything, mock.AnythingOfType("*sales.Sale")).Return(nil)

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		ProductID:   "SKU-100",
		Quantity:    3,
		UnitPrice:   decimal.NewFromInt(40),
		SoldBy:      soldBy,
		SaleChannel: "agent",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(sale.TotalAmount))
	assert.Equal(t, 17, item.TotalStock)
	assert.Equal(t, 3, item.TotalSold)

	require.Len(t, f.watcher.items, 1)
	assert.Equal(t, item, f.watcher.items[0])

	require.Len(t, f.publisher.events, 1)
	completed, ok := f.publisher.events[0].(*sales.SaleCompleted)
	require.True(t, ok)
	assert.Equal(t, "SKU-100", completed.ProductID)

	f.txs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(tx *inventory.Transaction) bool {
		return tx.Change == -3 && tx.Reason == inventory.ReasonSale && tx.RelatedSaleID != nil
	}))
}

func TestRecordSaleUnknownChannel(t *testing.T) {
	f := newSalesServiceFixture()
	_, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		ProductID:   "SKU-100",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(10),
		SoldBy:      uuid.New(),
		SaleChannel: "smoke-signal",
	})
	require.Error(t, err)
	f.sales.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecordSaleIdempotentReplay(t *testing.T) {
	f := newSalesServiceFixture()
	key := "order-42-sale"
	existing, err := sales.NewSale("SKU-100", 2, decimal.NewFromInt(50), uuid.New(), sales.ChannelStore)
	require.NoError(t, err)
	existing.IdempotencyKey = &key

	f.sales.On("FindByIdempotencyKey", mock.Anything, key).Return(existing, nil)

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		ProductID:      "SKU-100",
		Quantity:       2,
		UnitPrice:      decimal.NewFromInt(50),
		SoldBy:         uuid.New(),
		SaleChannel:    "store",
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sale.ID)

	// Replay must not touch stock, the watcher or the bus.
	f.items.AssertNotCalled(t, "FindByProductID", mock.Anything, mock.Anything)
	assert.Empty(t, f.watcher.items)
	assert.Empty(t, f.publisher.events)
}

func TestRecordSaleIdempotentReplayInsideTransaction(t *testing.T) {
	f := newSalesServiceFixture()
	key := "order-42-sale"
	existing, err := sales.NewSale("SKU-100", 2, decimal.NewFromInt(50), uuid.New(), sales.ChannelStore)
	require.NoError(t, err)
	existing.IdempotencyKey = &key

	// Missed by the pre-check, found by the in-transaction re-check.
	f.sales.On("FindByIdempotencyKey", mock.Anything, key).Return(nil, shared.ErrNotFound).Once()
	f.sales.On("FindByIdempotencyKey", mock.Anything, key).Return(existing, nil).Once()

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		ProductID:      "SKU-100",
		Quantity:       2,
		UnitPrice:      decimal.NewFromInt(50),
		SoldBy:         uuid.New(),
		SaleChannel:    "store",
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sale.ID)
	assert.Empty(t, f.watcher.items)
	assert.Empty(t, f.publisher.events)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	f := newSalesServiceFixture()
	item, err := inventory.NewItem("SKU-100", "Widget", 1, 5)
	require.NoError(t, err)

	f.items.On("FindByProductID", mock.Anything, "SKU-100").Return(item, nil)

	_, err = f.svc.RecordSale(context.Background(), RecordSaleInput{
		ProductID:   "SKU-100",
		Quantity:    5,
		UnitPrice:   decimal.NewFromInt(10),
		SoldBy:      uuid.New(),
		SaleChannel: "agent",
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrInsufficientStock.Code, domainErr.Code)
	f.sales.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.events)
}

func TestClassifySale(t *testing.T) {
	f := newSalesServiceFixture()
	f.svc.SetCommissionPolicy(decimal.NewFromInt(100), []string{"SKU-PROMO"})

	eligible, err := sales.NewSale("SKU-100", 2, decimal.NewFromInt(60), uuid.New(), sales.ChannelAgent)
	require.NoError(t, err)
	excluded, err := sales.NewSale("SKU-PROMO", 2, decimal.NewFromInt(60), uuid.New(), sales.ChannelAgent)
	require.NoError(t, err)

	f.sales.On("FindByID", mock.Anything, eligible.ID).Return(eligible, nil)
	f.sales.On("FindByID", mock.Anything, excluded.ID).Return(excluded, nil)

	got, err := f.svc.ClassifySale(context.Background(), eligible.ID)
	require.NoError(t, err)
	assert.True(t, got.CommissionEligible)

	got, err = f.svc.ClassifySale(context.Background(), excluded.ID)
	require.NoError(t, err)
	assert.False(t, got.CommissionEligible)
	require.NotNil(t, got.ExclusionReason)
	assert.Equal(t, sales.ExclusionProductExcluded, *got.ExclusionReason)
}
