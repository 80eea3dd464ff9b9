package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsflow/backend/internal/domain/shared"
)

// EventSaleCompleted is published after a sale commits.
const EventSaleCompleted = "sale.completed"

// AggregateSale names sales in event envelopes.
const AggregateSale = "sale"

// SaleCompleted carries the committed sale figures.
type SaleCompleted struct {
	shared.BaseDomainEvent
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SoldByUserID uuid.UUID       `json:"sold_by_user_id"`
	SaleChannel  SaleChannel     `json:"sale_channel"`
}

// NewSaleCompleted creates a sale completed event
func NewSaleCompleted(sale *Sale, actor shared.EventActor) *SaleCompleted {
	return &SaleCompleted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventSaleCompleted, AggregateSale, sale.ID, actor),
		ProductID:       sale.ProductID,
		Quantity:        sale.Quantity,
		TotalAmount:     sale.TotalAmount,
		SoldByUserID:    sale.SoldByUserID,
		SaleChannel:     sale.SaleChannel,
	}
}
