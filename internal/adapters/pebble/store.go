// Package pebble stores components in an embedded Pebble database, for
// single-node deployments without Postgres.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

// Key layout:
//
//	component/<id>            descriptive fields of a component
//	listing/<id>/<vendor>     one vendor result
const (
	componentPrefix = "component/"
	listingPrefix   = "listing/"
)

type Store struct {
	db *pebble.DB
	// serialises read-modify-write upserts
	mu sync.Mutex
}

var _ ports.ComponentStore = (*Store)(nil)

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func componentKey(id string) []byte { return []byte(componentPrefix + id) }

func listingKey(id, vendor string) []byte { return []byte(listingPrefix + id + "/" + vendor) }

func (s *Store) GetComponent(_ context.Context, id string) (domain.MergedComponent, bool, error) {
	var c domain.MergedComponent
	found, err := s.get(componentKey(id), &c)
	if err != nil || !found {
		return domain.MergedComponent{}, false, err
	}
	if c.Vendors, err = s.listings(id); err != nil {
		return domain.MergedComponent{}, false, err
	}
	return c, true, nil
}

func (s *Store) FindComponentsByQuery(_ context.Context, query, category string) ([]domain.MergedComponent, error) {
	it, err := s.db.NewIter(prefixBounds(componentPrefix))
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []domain.MergedComponent
	for it.First(); it.Valid(); it.Next() {
		var c domain.MergedComponent
		if err := json.Unmarshal(it.Value(), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		if !c.Matches(query, category) {
			continue
		}
		if c.Vendors, err = s.listings(c.ID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
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

	var prev domain.MergedComponent
	found, err := s.get(componentKey(c.ID), &prev)
	if err != nil {
		return err
	}
	if found && !domain.Supersedes(c.LastUpdated, prev.LastUpdated) {
		return nil
	}
	c.Vendors = nil
	return s.put(componentKey(c.ID), c)
}

func (s *Store) UpsertVendorListing(_ context.Context, componentID string, r domain.VendorResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent domain.MergedComponent
	found, err := s.get(componentKey(componentID), &parent)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("upsert listing %s/%s: component %w", componentID, r.VendorID, domain.ErrNotFound)
	}
	key := listingKey(componentID, r.VendorID)
	var prev domain.VendorResult
	found, err = s.get(key, &prev)
	if err != nil {
		return err
	}
	if found && !domain.Supersedes(r.LastUpdated, prev.LastUpdated) {
		return nil
	}
	return s.put(key, r)
}

func (s *Store) ExpireListings(_ context.Context, componentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent domain.MergedComponent
	found, err := s.get(componentKey(componentID), &parent)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("expire %s: %w", componentID, domain.ErrNotFound)
	}
	listings, err := s.listings(componentID)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, r := range listings {
		r.LastUpdated = time.Time{}
		v, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := b.Set(listingKey(componentID, r.VendorID), v, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	all, err := s.FindComponentsByQuery(ctx, "", "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range all {
		cat := strings.ToLower(c.Category)
		if cat != "" && !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out, nil
}

// listings returns the vendor results of id in vendor order, which is also
// the key order.
func (s *Store) listings(id string) ([]domain.VendorResult, error) {
	it, err := s.db.NewIter(prefixBounds(listingPrefix + id + "/"))
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	out := []domain.VendorResult{}
	for it.First(); it.Valid(); it.Next() {
		var r domain.VendorResult
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		out = append(out, r)
	}
	return out, it.Error()
}

func (s *Store) get(key []byte, dest any) (bool, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(v, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, b, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

func prefixBounds(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper}
}
