// Package search orchestrates a component query across the cache and every
// configured vendor.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
	"componentfinder/internal/services/cache"
	"componentfinder/internal/workers/refresher"
)

// ErrInvalidQuery is returned for requests that cannot be searched at all.
var ErrInvalidQuery = errors.New("invalid query")

// Enqueuer accepts refresh jobs without blocking. It reports false when the
// job was dropped.
type Enqueuer interface {
	Enqueue(job ports.RefreshJob) bool
}

// InlineRunner refreshes one component synchronously under the same claim
// as the background workers.
type InlineRunner interface {
	ProcessInline(ctx context.Context, processor refresher.Processor, componentID string) error
}

type Service struct {
	clients map[string]ports.VendorClient
	order   []string
	cache   *cache.Service
	refresh Enqueuer
	inline  InlineRunner
	log     logrus.FieldLogger
}

type Option func(*Service)

// WithRefresher sets where stale components are queued. Without one, stale
// entries are left for the next cache miss.
func WithRefresher(e Enqueuer) Option { return func(s *Service) { s.refresh = e } }

// WithInlineRunner routes RefreshNow through r. Without one, RefreshNow
// calls Refresh directly and takes no claim.
func WithInlineRunner(r InlineRunner) Option { return func(s *Service) { s.inline = r } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func New(clients []ports.VendorClient, c *cache.Service, opts ...Option) *Service {
	s := &Service{
		clients: make(map[string]ports.VendorClient, len(clients)),
		cache:   c,
		log:     logrus.StandardLogger(),
	}
	for _, cl := range clients {
		if _, dup := s.clients[cl.ID()]; dup {
			continue
		}
		s.clients[cl.ID()] = cl
		s.order = append(s.order, cl.ID())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vendors lists the configured vendor ids in registration order.
func (s *Service) Vendors() []string {
	return append([]string(nil), s.order...)
}

// Search serves fresh cached components when there are any and queues the
// stale ones for refresh. Otherwise it asks the vendors, merges what they
// return and caches it. Only a failure of every vendor is returned, as
// domain.ErrNoData; finding nothing is an empty result.
func (s *Service) Search(ctx context.Context, q domain.Query) ([]domain.MergedComponent, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, fmt.Errorf("search: empty text: %w", ErrInvalidQuery)
	}
	log := s.log.WithField("query", q.Text)

	clients, err := s.selectClients(q.Filters.Vendors, log)
	if err != nil {
		return nil, err
	}

	entries, err := s.cache.Lookup(ctx, q.Text, q.Category)
	if err != nil {
		log.WithError(err).Warn("cache lookup failed, fetching from vendors")
	}
	fresh, stale := s.cache.Partition(entries)
	if len(fresh) > 0 {
		for _, e := range stale {
			s.enqueue(e.Component.ID)
		}
		out := make([]domain.MergedComponent, len(fresh))
		for i, e := range fresh {
			out[i] = e.Component
		}
		return ApplyFilters(out, q.Category, q.Filters, q.Limit), nil
	}

	// Fetching and caching run to completion even if the caller goes away.
	work := context.WithoutCancel(ctx)
	records, err := s.fanOut(work, clients, q, log)
	if err != nil {
		return nil, err
	}
	merged := Merge(records)
	for _, c := range merged {
		if err := s.cache.UpsertComponent(work, c); err != nil {
			log.WithError(err).WithField("component_id", c.ID).Warn("cache write failed")
		}
	}
	return ApplyFilters(merged, q.Category, q.Filters, q.Limit), nil
}

func (s *Service) selectClients(names []string, log logrus.FieldLogger) ([]ports.VendorClient, error) {
	if len(names) == 0 {
		out := make([]ports.VendorClient, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, s.clients[id])
		}
		return out, nil
	}
	var out []ports.VendorClient
	seen := map[string]bool{}
	for _, name := range names {
		id := strings.ToLower(strings.TrimSpace(name))
		cl, ok := s.clients[id]
		if !ok {
			log.WithField("vendor", name).Warn("unknown vendor requested")
			continue
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, cl)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("search: no known vendor in %v: %w", names, ErrInvalidQuery)
	}
	return out, nil
}

// fanOut queries every client concurrently and waits for all of them. A
// vendor failure is logged and only surfaces when all of them fail.
func (s *Service) fanOut(ctx context.Context, clients []ports.VendorClient, q domain.Query, log logrus.FieldLogger) ([]domain.ComponentRecord, error) {
	results := make([][]domain.ComponentRecord, len(clients))
	errs := make([]error, len(clients))
	opts := domain.SearchOptions{Limit: q.Limit, Category: q.Category}

	var g errgroup.Group
	for i, cl := range clients {
		g.Go(func() error {
			recs, err := cl.Search(ctx, q.Text, opts)
			if err != nil {
				errs[i] = err
				log.WithError(err).WithFields(logrus.Fields{
					"vendor": cl.ID(),
					"kind":   domain.KindOf(err),
				}).Warn("vendor search failed")
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	var records []domain.ComponentRecord
	for i := range clients {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		records = append(records, results[i]...)
	}
	if len(failed) == len(clients) {
		return nil, errors.Join(append([]error{domain.ErrNoData}, failed...)...)
	}
	return records, nil
}

// Refresh re-fetches the stale vendor results of one cached component and
// writes back whatever succeeds.
func (s *Service) Refresh(ctx context.Context, componentID string) error {
	entry, err := s.cache.Get(ctx, componentID)
	if err != nil {
		return err
	}
	stale := s.cache.StaleVendors(entry.Component)
	sort.Slice(stale, func(i, j int) bool { return stale[i].VendorID < stale[j].VendorID })

	var errs []error
	for _, vr := range stale {
		cl, ok := s.clients[vr.VendorID]
		if !ok {
			s.log.WithFields(logrus.Fields{"component_id": componentID, "vendor": vr.VendorID}).
				Debug("no client for cached vendor, skipping")
			continue
		}
		next, err := cl.GetPrice(ctx, vr.PartNumber)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s from %s: %w", componentID, vr.VendorID, err))
			continue
		}
		next.VendorID = vr.VendorID
		if next.PartNumber == "" {
			next.PartNumber = vr.PartNumber
		}
		if next.URL == "" {
			next.URL = vr.URL
		}
		if err := s.cache.UpsertVendorResult(ctx, componentID, next); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Process runs one refresh job.
func (s *Service) Process(ctx context.Context, componentID string) error {
	return s.Refresh(ctx, componentID)
}

// Invalidate expires a cached component and queues it for refresh.
func (s *Service) Invalidate(ctx context.Context, componentID string) error {
	if _, err := s.cache.Get(ctx, componentID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, componentID); err != nil {
		return err
	}
	s.enqueue(componentID)
	return nil
}

// RefreshNow expires a cached component and refreshes it before returning
// the stored result. A vendor failure is returned together with the
// component, which still carries whatever did refresh. When another worker
// holds the claim the component is returned as it is.
func (s *Service) RefreshNow(ctx context.Context, componentID string) (domain.MergedComponent, error) {
	if _, err := s.cache.Get(ctx, componentID); err != nil {
		return domain.MergedComponent{}, err
	}
	if err := s.cache.Invalidate(ctx, componentID); err != nil {
		return domain.MergedComponent{}, err
	}
	var refreshErr error
	if s.inline != nil {
		refreshErr = s.inline.ProcessInline(ctx, s, componentID)
	} else {
		refreshErr = s.Refresh(ctx, componentID)
	}
	entry, err := s.cache.Get(context.WithoutCancel(ctx), componentID)
	if err != nil {
		return domain.MergedComponent{}, errors.Join(refreshErr, err)
	}
	return entry.Component, refreshErr
}

func (s *Service) enqueue(componentID string) {
	if s.refresh == nil {
		return
	}
	if !s.refresh.Enqueue(ports.RefreshJob{ComponentID: componentID}) {
		s.log.WithField("component_id", componentID).Debug("refresh not queued")
	}
}
