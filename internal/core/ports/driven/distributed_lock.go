package driven

import (
	"context"
	"time"
)

// DistributedLock keeps maintenance jobs from running concurrently on
// several instances.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false if another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock held by this instance.
	// Safe to call if the lock has already expired.
	Release(ctx context.Context, name string) error
}
