// Package retry runs vendor operations under a backoff ladder with per-attempt
// rate limiting.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"componentfinder/internal/domain"
)

// Policy is an exponential delay ladder: Base, 2*Base, 4*Base ... capped at Cap.
type Policy struct {
	MaxRetries uint64
	Base       time.Duration
	Cap        time.Duration
}

// DefaultPolicy retries three times after 1s, 2s and 4s; a longer ladder tops
// out at 16s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Base: time.Second, Cap: 16 * time.Second}
}

// Attempts is the total number of calls the policy allows.
func (p Policy) Attempts() int { return int(p.MaxRetries) + 1 }

func (p Policy) backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	b := goretry.NewExponential(base)
	if p.Cap > 0 {
		b = goretry.WithCappedDuration(p.Cap, b)
	}
	return goretry.WithMaxRetries(p.MaxRetries, b)
}

// Acquirer gates each attempt; *ratelimit.Limiter satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Do calls op until it succeeds, returns a non-retryable error, or the policy
// runs out. The last error is returned unwrapped. limiter may be nil.
func Do(ctx context.Context, p Policy, limiter Acquirer, op func(ctx context.Context) error) error {
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if limiter != nil {
			if err := limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if domain.IsRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, limiter Acquirer, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, limiter, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
