// Package refresher runs cache refreshes outside the request path.
package refresher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"componentfinder/internal/metrics"
	"componentfinder/internal/ports"
)

// Processor performs the refresh of one component.
type Processor interface {
	Process(ctx context.Context, componentID string) error
}

// ErrClosed is returned by Shutdown when called twice.
var ErrClosed = errors.New("refresher: pool closed")

const (
	DefaultQueueSize  = 256
	DefaultClaimTTL   = 5 * time.Minute
	DefaultJobTimeout = 2 * time.Minute
)

// Pool is a bounded queue of refresh jobs drained by a fixed set of workers.
// Enqueue never blocks; jobs beyond the queue size are dropped and the next
// stale read queues them again.
type Pool struct {
	jobs       chan ports.RefreshJob
	claims     ports.RefreshClaims
	claimTTL   time.Duration
	jobTimeout time.Duration
	log        logrus.FieldLogger
	metrics    *metrics.Registry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Pool)

func WithClaimTTL(d time.Duration) Option { return func(p *Pool) { p.claimTTL = d } }

func WithJobTimeout(d time.Duration) Option { return func(p *Pool) { p.jobTimeout = d } }

func WithLogger(l logrus.FieldLogger) Option { return func(p *Pool) { p.log = l } }

func WithMetrics(m *metrics.Registry) Option { return func(p *Pool) { p.metrics = m } }

// New creates a pool holding up to size pending jobs. A nil claims
// deduplicates nothing.
func New(size int, claims ports.RefreshClaims, opts ...Option) *Pool {
	if size < 1 {
		size = DefaultQueueSize
	}
	p := &Pool{
		jobs:       make(chan ports.RefreshJob, size),
		claims:     claims,
		claimTTL:   DefaultClaimTTL,
		jobTimeout: DefaultJobTimeout,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue adds job without blocking and reports whether it was accepted.
func (p *Pool) Enqueue(job ports.RefreshJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		p.metrics.Refresh("queued")
		return true
	default:
		p.metrics.Refresh("dropped")
		p.log.WithField("component_id", job.ComponentID).Warn("refresh queue full, job dropped")
		return false
	}
}

// Pending is the number of queued jobs not yet picked up.
func (p *Pool) Pending() int { return len(p.jobs) }

// Run starts concurrency workers. They stop when ctx is done or, after
// Shutdown, once the queue is drained. A job already started is not
// cancelled with ctx; it is bounded by the job timeout instead.
func (p *Pool) Run(ctx context.Context, processor Processor, concurrency int) {
	if concurrency < 1 {
		return
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go func(idx int) {
			defer p.wg.Done()
			log := p.log.WithField("worker", idx)
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.jobTimeout)
					_ = p.process(jobCtx, processor, job.ComponentID, log)
					cancel()
				}
			}
		}(i)
	}
}

// Shutdown stops accepting jobs and waits for the workers to finish what is
// queued, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessInline refreshes componentID synchronously with the same claim and
// failure handling as the workers.
func (p *Pool) ProcessInline(ctx context.Context, processor Processor, componentID string) error {
	return p.process(ctx, processor, componentID, p.log)
}

func (p *Pool) process(ctx context.Context, processor Processor, componentID string, log logrus.FieldLogger) error {
	log = log.WithField("component_id", componentID)
	key := "refresh:" + componentID
	if p.claims != nil {
		claimed, err := p.claims.Claim(ctx, key, p.claimTTL)
		switch {
		case err != nil:
			log.WithError(err).Warn("refresh claim failed, refreshing anyway")
		case !claimed:
			log.Debug("refresh already running elsewhere")
			return nil
		default:
			defer func() {
				if err := p.claims.Release(context.WithoutCancel(ctx), key); err != nil {
					log.WithError(err).Warn("refresh claim release failed")
				}
			}()
		}
	}

	start := time.Now()
	if err := processor.Process(ctx, componentID); err != nil {
		p.metrics.Refresh("failed")
		log.WithError(err).Warn("refresh failed")
		return err
	}
	p.metrics.Refresh("done")
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Debug("refresh completed")
	return nil
}
