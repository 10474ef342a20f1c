// Package memory keeps components and refresh claims in process memory. It
// backs tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

type Store struct {
	mu         sync.RWMutex
	components map[string]domain.MergedComponent
	listings   map[string]map[string]domain.VendorResult
}

var _ ports.ComponentStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		components: map[string]domain.MergedComponent{},
		listings:   map[string]map[string]domain.VendorResult{},
	}
}

func (s *Store) GetComponent(_ context.Context, id string) (domain.MergedComponent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[id]
	if !ok {
		return domain.MergedComponent{}, false, nil
	}
	return s.assemble(c), true, nil
}

func (s *Store) FindComponentsByQuery(_ context.Context, query, category string) ([]domain.MergedComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MergedComponent
	for _, c := range s.components {
		if c.Matches(query, category) {
			out = append(out, s.assemble(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertComponent(_ context.Context, c domain.MergedComponent) error {
	if c.ID == "" {
		return fmt.Errorf("upsert component: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.components[c.ID]; ok && !domain.Supersedes(c.LastUpdated, prev.LastUpdated) {
		return nil
	}
	c.Vendors = nil
	c.Specifications = copySpecs(c.Specifications)
	s.components[c.ID] = c
	return nil
}

func (s *Store) UpsertVendorListing(_ context.Context, componentID string, r domain.VendorResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.components[componentID]; !ok {
		return fmt.Errorf("upsert listing %s/%s: component %w", componentID, r.VendorID, domain.ErrNotFound)
	}
	byVendor := s.listings[componentID]
	if byVendor == nil {
		byVendor = map[string]domain.VendorResult{}
		s.listings[componentID] = byVendor
	}
	if prev, ok := byVendor[r.VendorID]; ok && !domain.Supersedes(r.LastUpdated, prev.LastUpdated) {
		return nil
	}
	byVendor[r.VendorID] = r
	return nil
}

func (s *Store) ExpireListings(_ context.Context, componentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.components[componentID]; !ok {
		return fmt.Errorf("expire %s: %w", componentID, domain.ErrNotFound)
	}
	for vendor, r := range s.listings[componentID] {
		r.LastUpdated = time.Time{}
		s.listings[componentID][vendor] = r
	}
	return nil
}

func (s *Store) Categories(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, c := range s.components {
		cat := strings.ToLower(c.Category)
		if cat != "" && !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out, nil
}

// assemble attaches listings to c. Caller holds at least the read lock.
func (s *Store) assemble(c domain.MergedComponent) domain.MergedComponent {
	c.Specifications = copySpecs(c.Specifications)
	c.Vendors = make([]domain.VendorResult, 0, len(s.listings[c.ID]))
	for _, r := range s.listings[c.ID] {
		c.Vendors = append(c.Vendors, r)
	}
	domain.SortVendors(c.Vendors)
	return c
}

func copySpecs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
