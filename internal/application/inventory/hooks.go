package inventory

import (
	"context"

	"github.com/opsflow/backend/internal/domain/inventory"
)

// RestockTaskManager reacts to stock levels crossing the low-stock
// threshold. The automation engine implements it; the no-op keeps the
// inventory service usable without it.
type RestockTaskManager interface {
	// EnsureRestockTask raises a restock task for a low-stock item unless
	// one is already open. It reports whether a new task was created.
	EnsureRestockTask(ctx context.Context, item *inventory.Item) (bool, error)
	// ResolveRestockTasks closes open restock tasks once stock recovered
	ResolveRestockTasks(ctx context.Context, item *inventory.Item) error
}

// NoOpRestockTaskManager ignores stock level changes.
type NoOpRestockTaskManager struct{}

// EnsureRestockTask does nothing
func (NoOpRestockTaskManager) EnsureRestockTask(context.Context, *inventory.Item) (bool, error) {
	return false, nil
}

// ResolveRestockTasks does nothing
func (NoOpRestockTaskManager) ResolveRestockTasks(context.Context, *inventory.Item) error {
	return nil
}
