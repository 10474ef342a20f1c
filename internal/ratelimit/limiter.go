// Package ratelimit paces outbound requests to a single vendor.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Limiter is a token bucket. One instance belongs to one vendor client.
type Limiter struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	maxTokens  int
	refillRate float64
	tokens     int
	lastRefill time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New returns a full bucket holding maxTokens and refilling refillRate tokens
// per second. Non-positive arguments fall back to one token per second.
func New(maxTokens int, refillRate float64, opts ...Option) *Limiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	l := &Limiter{
		clock:      clockwork.NewRealClock(),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		tokens:     maxTokens,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.clock.Now()
	return l
}

// Acquire takes a token, waiting one refill interval when the bucket is empty.
// After that single wait the token is taken regardless, so heavy contention
// can leave the bucket in debt; later callers then wait longer. The only error
// is ctx's.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.refill()
	if l.tokens > 0 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(l.Interval()):
	}

	l.mu.Lock()
	l.refill()
	l.tokens--
	l.mu.Unlock()
	return nil
}

// Available reports the tokens that could be taken right now.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return max(l.tokens, 0)
}

// Interval is the time it takes to refill one token.
func (l *Limiter) Interval() time.Duration {
	return time.Duration(float64(time.Second) / l.refillRate)
}

// refill adds whole tokens for the time elapsed and only advances lastRefill
// by the time those tokens account for, so partial progress carries over.
func (l *Limiter) refill() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	added := int(math.Floor(elapsed * l.refillRate))
	if added <= 0 {
		return
	}
	if l.tokens+added >= l.maxTokens {
		l.tokens = l.maxTokens
		l.lastRefill = now
		return
	}
	l.tokens += added
	l.lastRefill = l.lastRefill.Add(time.Duration(float64(added) / l.refillRate * float64(time.Second)))
}
