package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	shared.Filter
	InventoryID *uuid.UUID
	Reason      *TransactionReason
}

// ItemRepository persists inventory items
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	FindByProductID(ctx context.Context, productID string) (*Item, error)
	// SaveWithLock updates the item guarded by its previous version and
	// returns ErrConcurrencyConflict when the guard misses
	SaveWithLock(ctx context.Context, item *Item) error
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[*Item], error)
	ListLowStock(ctx context.Context, limit int) ([]*Item, error)
}

// TransactionRepository appends to and reads the stock audit trail
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	List(ctx context.Context, filter TransactionFilter) (shared.Paginated[*Transaction], error)
}
