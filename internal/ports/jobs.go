package ports

import (
	"context"
	"time"
)

// RefreshJob asks for the stale listings of one component to be re-fetched.
type RefreshJob struct {
	ComponentID string
}

// RefreshClaims suppresses duplicate refreshes of the same component while one
// is already running, possibly in another process.
type RefreshClaims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (claimed bool, err error)
	Release(ctx context.Context, key string) error
}
