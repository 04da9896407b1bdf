// Package cache provides the key-value capability shared by the token broker
// and the credential resolver. Implementations must keep per-key TTLs and
// support prefix invalidation; keys are tenant-namespaced by callers.
package cache

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the raw value and whether the key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any prior entry. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidatePattern removes every key starting with prefix and reports how many.
	InvalidatePattern(ctx context.Context, prefix string) (int, error)
}
