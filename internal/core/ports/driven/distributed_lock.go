package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across drive-relay instances: the pending
// authorization sweep and, when enabled, token refresh and folder creation.
type DistributedLock interface {
	// Acquire tries to take a named lock for ttl.
	// Returns false (and no error) when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops a named lock. Safe to call when the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a lock this instance holds.
	// PostgreSQL advisory locks have no TTL and treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
