package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"componentfinder/internal/ports"
)

// Claims is a single-process ports.RefreshClaims. Claims expire after their
// TTL so a crashed refresh does not block the key forever.
type Claims struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	expiry map[string]time.Time
}

var _ ports.RefreshClaims = (*Claims)(nil)

func NewClaims(clock clockwork.Clock) *Claims {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Claims{clock: clock, expiry: map[string]time.Time{}}
}

func (c *Claims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if until, ok := c.expiry[key]; ok && now.Before(until) {
		return false, nil
	}
	c.expiry[key] = now.Add(ttl)
	return true, nil
}

func (c *Claims) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.expiry, key)
	return nil
}
