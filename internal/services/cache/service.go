// Package cache is the read-through store in front of the vendors. Staleness
// is computed on every read from the vendor results' timestamps.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"componentfinder/internal/domain"
	"componentfinder/internal/metrics"
	"componentfinder/internal/ports"
)

type Service struct {
	store   ports.ComponentStore
	clock   clockwork.Clock
	ttl     time.Duration
	log     logrus.FieldLogger
	metrics *metrics.Registry
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// WithTTL overrides the 24h freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func WithMetrics(m *metrics.Registry) Option { return func(s *Service) { s.metrics = m } }

func New(store ports.ComponentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: clockwork.NewRealClock(),
		ttl:   domain.DefaultTTL,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) Now() time.Time { return s.clock.Now() }

// Lookup returns cached components matching query, fresh or not.
func (s *Service) Lookup(ctx context.Context, query, category string) ([]domain.CacheEntry, error) {
	found, err := s.store.FindComponentsByQuery(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("cache lookup %q: %w", query, err)
	}
	out := make([]domain.CacheEntry, len(found))
	for i, c := range found {
		out[i] = domain.CacheEntry{Component: c}
	}
	if len(out) == 0 {
		s.metrics.Lookup(metrics.LookupMiss, 1)
	}
	return out, nil
}

// Partition splits entries into those whose every vendor result is within
// the TTL and the rest.
func (s *Service) Partition(entries []domain.CacheEntry) (fresh, stale []domain.CacheEntry) {
	now := s.clock.Now()
	for _, e := range entries {
		if e.Stale(now, s.ttl) {
			stale = append(stale, e)
		} else {
			fresh = append(fresh, e)
		}
	}
	s.metrics.Lookup(metrics.LookupFresh, len(fresh))
	s.metrics.Lookup(metrics.LookupStale, len(stale))
	return fresh, stale
}

// Get returns one cached component or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.CacheEntry, error) {
	c, found, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("cache get %s: %w", id, err)
	}
	if !found {
		return domain.CacheEntry{}, fmt.Errorf("component %s: %w", id, domain.ErrNotFound)
	}
	return domain.CacheEntry{Component: c}, nil
}

// UpsertComponent writes c and all of its vendor results.
func (s *Service) UpsertComponent(ctx context.Context, c domain.MergedComponent) error {
	if err := s.store.UpsertComponent(ctx, c); err != nil {
		return s.writeFailed("upsert component", c.ID, err)
	}
	for _, r := range c.Vendors {
		if err := s.store.UpsertVendorListing(ctx, c.ID, r); err != nil {
			return s.writeFailed("upsert listing", c.ID, err)
		}
	}
	return nil
}

func (s *Service) UpsertVendorResult(ctx context.Context, componentID string, r domain.VendorResult) error {
	if err := s.store.UpsertVendorListing(ctx, componentID, r); err != nil {
		return s.writeFailed("upsert listing", componentID, err)
	}
	return nil
}

// Invalidate makes every vendor result of the component stale. The next
// search that touches it refetches.
func (s *Service) Invalidate(ctx context.Context, componentID string) error {
	if err := s.store.ExpireListings(ctx, componentID); err != nil {
		return s.writeFailed("invalidate", componentID, err)
	}
	s.log.WithField("component_id", componentID).Info("cache entry invalidated")
	return nil
}

func (s *Service) IsStale(lastUpdated time.Time) bool {
	return domain.IsStale(lastUpdated, s.clock.Now(), s.ttl)
}

// StaleVendors lists the expired vendor results of c at the current time.
func (s *Service) StaleVendors(c domain.MergedComponent) []domain.VendorResult {
	return domain.CacheEntry{Component: c}.StaleVendors(s.clock.Now(), s.ttl)
}

func (s *Service) writeFailed(op, componentID string, err error) error {
	s.metrics.CacheWriteFailed()
	return domain.CacheWriteError(op, fmt.Errorf("component %s: %w", componentID, err))
}
