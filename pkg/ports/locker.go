package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates access to a run across replicas.
// The session manager takes the lock around every load/save of a run so that
// resumes arriving at different instances never interleave.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held, ctx is done or the backend gives up.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
