package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormSaleRepository implements sales.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new sale repository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create inserts a new sale
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// FindByID retrieves a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var sale sales.Sale
	err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("sale not found")
		}
		return nil, err
	}
	return &sale, nil
}

// FindByIdempotencyKey retrieves a sale by its client-supplied key. A miss
// returns nil, nil so callers can branch without error plumbing.
func (r *GormSaleRepository) FindByIdempotencyKey(ctx context.Context, key string) (*sales.Sale, error) {
	var sale sales.Sale
	err := r.db.WithContext(ctx).First(&sale, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// List returns a page of sales matching the filter
func (r *GormSaleRepository) List(ctx context.Context, filter sales.SaleFilter) (shared.Paginated[*sales.Sale], error) {
	query := r.db.WithContext(ctx).Model(&sales.Sale{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.SoldByUserID != nil {
		query = query.Where("sold_by_user_id = ?", *filter.SoldByUserID)
	}
	if filter.Channel != nil {
		query = query.Where("sale_channel = ?", *filter.Channel)
	}
	query = applyDateRange(query, filter.Range)
	return findPage[*sales.Sale](query, filter.Filter)
}

// Summary aggregates count, quantity and revenue over the range
func (r *GormSaleRepository) Summary(ctx context.Context, dateRange *sales.DateRange) (*sales.Summary, error) {
	var summary sales.Summary
	query := r.db.WithContext(ctx).Model(&sales.Sale{}).
		Select("COUNT(*) AS sale_count, COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(total_amount), 0) AS total_amount")
	query = applyDateRange(query, dateRange)
	if err := query.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

// AgentPerformance aggregates per seller over the range, top revenue first
func (r *GormSaleRepository) AgentPerformance(ctx context.Context, dateRange *sales.DateRange) ([]*sales.SellerPerformance, error) {
	var rows []*sales.SellerPerformance
	query := r.db.WithContext(ctx).Model(&sales.Sale{}).
		Select("sold_by_user_id, COUNT(*) AS sale_count, COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(total_amount), 0) AS total_amount").
		Group("sold_by_user_id").
		Order("total_amount DESC")
	query = applyDateRange(query, dateRange)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyDateRange(query *gorm.DB, dateRange *sales.DateRange) *gorm.DB {
	if dateRange == nil {
		return query
	}
	if !dateRange.From.IsZero() {
		query = query.Where("created_at >= ?", dateRange.From)
	}
	if !dateRange.To.IsZero() {
		query = query.Where("created_at < ?", dateRange.To)
	}
	return query
}

var _ sales.SaleRepository = (*GormSaleRepository)(nil)
