package inventory

import (
	"github.com/opsflow/backend/internal/domain/shared"
)

// Item is the per-product stock record. Every stock mutation goes through a
// versioned update and writes a matching transaction row in the same unit.
type Item struct {
	shared.BaseAggregateRoot
	ProductID         string `gorm:"size:64;uniqueIndex;not null"`
	ProductName       string `gorm:"size:255;not null"`
	TotalStock        int    `gorm:"not null;default:0"`
	TotalSold         int    `gorm:"not null;default:0"`
	LowStockThreshold int    `gorm:"not null;default:0"`
}

// TableName returns the database table name
func (Item) TableName() string {
	return "inventory_items"
}

// NewItem creates an inventory record for a product
func NewItem(productID, name string, initialStock, lowStockThreshold int) (*Item, error) {
	if productID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "product id is required")
	}
	if initialStock < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "initial stock cannot be negative")
	}
	return &Item{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		ProductName:       name,
		TotalStock:        initialStock,
		LowStockThreshold: lowStockThreshold,
	}, nil
}

// IsLowStock reports whether stock is at or below the threshold
func (i *Item) IsLowStock() bool {
	return i.TotalStock <= i.LowStockThreshold
}

// AddStock increases stock by quantity
func (i *Item) AddStock(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "restock quantity must be positive")
	}
	i.TotalStock += quantity
	i.IncrementVersion()
	return nil
}

// Adjust applies a signed stock delta. The resulting stock must stay
// non-negative.
func (i *Item) Adjust(delta int) error {
	if i.TotalStock+delta < 0 {
		return shared.ErrInvalidState.WithMessage("adjustment would make stock negative")
	}
	i.TotalStock += delta
	i.IncrementVersion()
	return nil
}

// DecrementForSale removes sold quantity from stock
func (i *Item) DecrementForSale(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "sale quantity must be positive")
	}
	if i.TotalStock < quantity {
		return shared.ErrInsufficientStock.WithMessage("insufficient stock for product " + i.ProductID)
	}
	i.TotalStock -= quantity
	i.TotalSold += quantity
	i.IncrementVersion()
	return nil
}
