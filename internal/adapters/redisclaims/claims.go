// Package redisclaims implements ports.RefreshClaims on Redis for
// deployments that run several processes against one cache.
package redisclaims

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"componentfinder/internal/ports"
)

// releaseScript deletes the claim only if it still carries our token, so a
// slow worker cannot drop a claim that expired and was taken by another.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Claims struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

var _ ports.RefreshClaims = (*Claims)(nil)

// New connects to the Redis at url, e.g. redis://localhost:6379/0.
func New(url string) (*Claims, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts)), nil
}

func NewWithClient(client *redis.Client) *Claims {
	return &Claims{client: client, prefix: "componentfinder:claim:", tokens: map[string]string{}}
}

func (c *Claims) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Claims) Close() error { return c.client.Close() }

func (c *Claims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	if ok {
		c.mu.Lock()
		c.tokens[key] = token
		c.mu.Unlock()
	}
	return ok, nil
}

func (c *Claims) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	token, ok := c.tokens[key]
	delete(c.tokens, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, c.client, []string{c.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
