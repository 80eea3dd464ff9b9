package shared

import (
	"context"
	"time"
)

// IdempotencyStore tracks already-processed keys so side effects such as
// webhook deliveries and sale recordings happen at most once.
type IdempotencyStore interface {
	// MarkProcessed records the key if it has not been seen before.
	// It returns true when this call claimed the key, false when the key
	// was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether the key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget removes a recorded key so it can be claimed again. Callers
	// use it to release a claim when the side effect did not happen.
	Forget(ctx context.Context, key string) error
	// Close releases any resources held by the store
	Close() error
}
