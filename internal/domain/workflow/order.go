package workflow

import (
	"strings"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// OrderType identifies which step sequence the registry compiles for an
// order. Immutable after creation.
type OrderType string

const (
	OrderTypeAgentRestock       OrderType = "agentRestock"
	OrderTypeAgentRetail        OrderType = "agentRetail"
	OrderTypeStoreKeeperRestock OrderType = "storeKeeperRestock"
	OrderTypeCustomerWholesale  OrderType = "customerWholesale"
)

// ParseOrderType validates an order type string against the registry
func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(strings.TrimSpace(s))
	if _, ok := registry[t]; !ok {
		return "", shared.NewDomainError("INVALID_INPUT", "unknown order type: "+s)
	}
	return t, nil
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusSubmitted            OrderStatus = "submitted"
	OrderStatusInProgress           OrderStatus = "inProgress"
	OrderStatusAwaitingConfirmation OrderStatus = "awaitingConfirmation"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

// OrderItem is one requested product line on an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Order is the aggregate root of the fulfilment workflow. Its status is
// recomputed from its step tasks and never set directly by callers.
type Order struct {
	shared.BaseAggregateRoot
	Type             OrderType      `gorm:"size:32;not null;index"`
	Status           OrderStatus    `gorm:"size:32;not null;index"`
	CreatedByUserID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	RelatedChannelID *string        `gorm:"size:64"`
	DeliveryLocation string         `gorm:"size:255"`
	CustomerName     string         `gorm:"size:255"`
	CustomerPhone    string         `gorm:"size:64"`
	Metadata         shared.JSONMap `gorm:"type:jsonb"`
}

// TableName returns the database table name
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a submitted order of the given type
func NewOrder(orderType OrderType, createdBy uuid.UUID, metadata shared.JSONMap) *Order {
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              orderType,
		Status:            OrderStatusSubmitted,
		CreatedByUserID:   createdBy,
		Metadata:          metadata,
	}
	return o
}

// Items decodes the item lines stored under metadata
func (o *Order) Items() []OrderItem {
	raw, ok := o.Metadata["items"].([]any)
	if !ok {
		return nil
	}
	items := make([]OrderItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := OrderItem{}
		if v, ok := m["product_id"].(string); ok {
			item.ProductID = v
		}
		if v, ok := m["name"].(string); ok {
			item.Name = v
		}
		switch q := m["quantity"].(type) {
		case float64:
			item.Quantity = int(q)
		case int:
			item.Quantity = q
		}
		items = append(items, item)
	}
	return items
}

// SetStatus transitions the order and records the change as a domain event.
// It is a no-op when the status is unchanged.
func (o *Order) SetStatus(status OrderStatus, actor shared.EventActor) bool {
	if o.Status == status {
		return false
	}
	previous := o.Status
	o.Status = status
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderStatusChanged(o, previous, actor))
	if status == OrderStatusCompleted {
		o.AddDomainEvent(NewOrderCompleted(o, actor))
	}
	return true
}
