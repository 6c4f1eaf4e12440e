// Package record stores per (client, route-class) rate counters behind a
// small key-value contract. The only hard requirement on implementations is
// per-key atomicity of Incr: two concurrent callers must observe distinct
// post-increment counts.
package record

import (
	"context"
	"time"

	"sayarat/internal/ratelimit/models"
)

// Store is the persistence boundary for rate records.
type Store interface {
	// Get returns the current record for key, or nil when absent.
	Get(ctx context.Context, key string) (*models.Record, error)

	// Incr atomically increments the attempt count for key within the current
	// fixed window, creating the record or starting a new window as needed,
	// and returns the post-increment state.
	Incr(ctx context.Context, key string, window, retention time.Duration, now time.Time) (*models.Record, error)

	// Block marks key as blocked until the given instant.
	Block(ctx context.Context, key string, until time.Time, retention time.Duration) error

	// Reset removes the record for key.
	Reset(ctx context.Context, key string) error

	// Sweep garbage-collects records whose retention has passed, returning
	// the number removed. Stores with native expiry may make this a no-op.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
