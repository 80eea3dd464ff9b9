package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// GormOrderRepository implements workflow.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new order repository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, order *workflow.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID retrieves an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.Order, error) {
	var order workflow.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("order not found")
		}
		return nil, err
	}
	return &order, nil
}

// SaveWithLock updates the order guarded by its previous version
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *workflow.Order) error {
	result := r.db.WithContext(ctx).Model(order).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Updates(map[string]interface{}{
			"status":            order.Status,
			"delivery_location": order.DeliveryLocation,
			"customer_name":     order.CustomerName,
			"customer_phone":    order.CustomerPhone,
			"metadata":          order.Metadata,
			"version":           order.Version,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("order was modified by another transaction")
	}
	return nil
}

// List returns a page of orders matching the filter
func (r *GormOrderRepository) List(ctx context.Context, filter workflow.OrderFilter) (shared.Paginated[*workflow.Order], error) {
	query := r.db.WithContext(ctx).Model(&workflow.Order{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedByUserID != nil {
		query = query.Where("created_by_user_id = ?", *filter.CreatedByUserID)
	}
	return findPage[*workflow.Order](query, filter.Filter)
}

var _ workflow.OrderRepository = (*GormOrderRepository)(nil)
