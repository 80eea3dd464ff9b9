package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/inventory"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormInventoryRepository implements inventory.ItemRepository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new inventory repository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// Create inserts a new inventory item
func (r *GormInventoryRepository) Create(ctx context.Context, item *inventory.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID retrieves an item by its ID
func (r *GormInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Item, error) {
	var item inventory.Item
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("inventory item not found")
		}
		return nil, err
	}
	return &item, nil
}

// FindByProductID retrieves an item by its product reference
func (r *GormInventoryRepository) FindByProductID(ctx context.Context, productID string) (*inventory.Item, error) {
	var item inventory.Item
	err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("no inventory record for product " + productID)
		}
		return nil, err
	}
	return &item, nil
}

// SaveWithLock updates the item guarded by its previous version
func (r *GormInventoryRepository) SaveWithLock(ctx context.Context, item *inventory.Item) error {
	result := r.db.WithContext(ctx).Model(item).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"product_name":        item.ProductName,
			"total_stock":         item.TotalStock,
			"total_sold":          item.TotalSold,
			"low_stock_threshold": item.LowStockThreshold,
			"version":             item.Version,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("inventory item was modified by another transaction")
	}
	return nil
}

// List returns a page of items ordered by product name
func (r *GormInventoryRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*inventory.Item], error) {
	query := r.db.WithContext(ctx).Model(&inventory.Item{})
	return findPage[*inventory.Item](query, filter)
}

// ListLowStock returns items at or below their threshold, lowest headroom first
func (r *GormInventoryRepository) ListLowStock(ctx context.Context, limit int) ([]*inventory.Item, error) {
	var items []*inventory.Item
	err := r.db.WithContext(ctx).
		Where("total_stock <= low_stock_threshold").
		Order("total_stock - low_stock_threshold ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

var _ inventory.ItemRepository = (*GormInventoryRepository)(nil)

// GormInventoryTransactionRepository implements inventory.TransactionRepository
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new transaction repository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Create appends a stock transaction row
func (r *GormInventoryTransactionRepository) Create(ctx context.Context, tx *inventory.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// List returns a page of transactions matching the filter
func (r *GormInventoryTransactionRepository) List(ctx context.Context, filter inventory.TransactionFilter) (shared.Paginated[*inventory.Transaction], error) {
	query := r.db.WithContext(ctx).Model(&inventory.Transaction{})
	if filter.InventoryID != nil {
		query = query.Where("inventory_id = ?", *filter.InventoryID)
	}
	if filter.Reason != nil {
		query = query.Where("reason = ?", *filter.Reason)
	}
	return findPage[*inventory.Transaction](query, filter.Filter)
}

var _ inventory.TransactionRepository = (*GormInventoryTransactionRepository)(nil)
