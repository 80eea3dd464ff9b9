package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsflow/backend/internal/domain/shared"
)

// DateRange bounds reporting queries. Zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Summary is the aggregate over a set of sales.
type Summary struct {
	SaleCount     int64           `json:"sale_count"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// SellerPerformance is the per-seller aggregate.
type SellerPerformance struct {
	SoldByUserID  uuid.UUID       `json:"sold_by_user_id"`
	SaleCount     int64           `json:"sale_count"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	shared.Filter
	ProductID    *string
	SoldByUserID *uuid.UUID
	Channel      *SaleChannel
	Range        *DateRange
}

// SaleRepository persists sales and serves the reporting aggregates
type SaleRepository interface {
	Create(ctx context.Context, sale *Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Sale, error)
	List(ctx context.Context, filter SaleFilter) (shared.Paginated[*Sale], error)
	Summary(ctx context.Context, dateRange *DateRange) (*Summary, error)
	AgentPerformance(ctx context.Context, dateRange *DateRange) ([]*SellerPerformance, error)
}
