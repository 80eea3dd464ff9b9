package inventory

import (
	"github.com/opsflow/backend/internal/domain/shared"
)

// EventLowStock is published when stock falls to or below the threshold.
const EventLowStock = "inventory.lowStock"

// AggregateInventory names inventory items in event envelopes.
const AggregateInventory = "inventory"

// LowStock signals that a product needs restocking.
type LowStock struct {
	shared.BaseDomainEvent
	ProductID         string `json:"product_id"`
	ProductName       string `json:"product_name"`
	TotalStock        int    `json:"total_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// NewLowStock creates a low stock event
func NewLowStock(item *Item) *LowStock {
	return &LowStock{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventLowStock, AggregateInventory, item.ID, shared.SystemActor),
		ProductID:         item.ProductID,
		ProductName:       item.ProductName,
		TotalStock:        item.TotalStock,
		LowStockThreshold: item.LowStockThreshold,
	}
}
