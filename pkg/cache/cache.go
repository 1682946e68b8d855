package cache

import (
	"context"
	"time"
)

// Counter is a keyed integer store with per-key expiry.
type Counter interface {
	// Increment adds one to key, setting ttl when the key is created, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Decrement subtracts one from key.
	Decrement(ctx context.Context, key string) error
	// Get returns the current value, or zero when the key does not exist.
	Get(ctx context.Context, key string) (int64, error)
	Close() error
}
