package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsflow/backend/internal/domain/shared"
)

// SaleChannel is where a sale originated.
type SaleChannel string

const (
	ChannelAgent     SaleChannel = "agent"
	ChannelStore     SaleChannel = "store"
	ChannelOnline    SaleChannel = "online"
	ChannelWholesale SaleChannel = "wholesale"
)

// ValidChannels lists every sale channel
var ValidChannels = []SaleChannel{ChannelAgent, ChannelStore, ChannelOnline, ChannelWholesale}

// ParseChannel validates a sale channel string
func ParseChannel(s string) (SaleChannel, error) {
	c := SaleChannel(s)
	for _, v := range ValidChannels {
		if c == v {
			return c, nil
		}
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown sale channel: "+s)
}

// Sale is one completed sale. At most one sale exists per non-null
// idempotency key.
type Sale struct {
	shared.BaseEntity
	ProductID      string          `gorm:"size:64;not null;index"`
	Quantity       int             `gorm:"not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	SoldByUserID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleChannel    SaleChannel     `gorm:"size:16;not null;index"`
	RelatedOrderID *uuid.UUID      `gorm:"type:uuid"`
	IdempotencyKey *string         `gorm:"size:128;uniqueIndex"`
	CustomerName   string          `gorm:"size:255"`
}

// TableName returns the database table name
func (Sale) TableName() string {
	return "sales"
}

// NewSale creates a sale with the total derived from quantity and unit price
func NewSale(productID string, quantity int, unitPrice decimal.Decimal, soldBy uuid.UUID, channel SaleChannel) (*Sale, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "sale quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unit price cannot be negative")
	}
	return &Sale{
		BaseEntity:   shared.NewBaseEntity(),
		ProductID:    productID,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		TotalAmount:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		SoldByUserID: soldBy,
		SaleChannel:  channel,
	}, nil
}
