package catalog

import (
	"context"
	"sort"

	"componentfinder/internal/domain"
	"componentfinder/internal/services/cache"
)

type categoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// Service answers read-only questions about what is already cached.
type Service struct {
	cache      *cache.Service
	categories categoryLister
	vendors    []string
}

func New(c *cache.Service, categories categoryLister, vendors []string) *Service {
	v := append([]string(nil), vendors...)
	sort.Strings(v)
	return &Service{cache: c, categories: categories, vendors: v}
}

// GetComponent returns a cached component as stored, stale or not, or
// domain.ErrNotFound.
func (s *Service) GetComponent(ctx context.Context, id string) (domain.MergedComponent, error) {
	e, err := s.cache.Get(ctx, id)
	if err != nil {
		return domain.MergedComponent{}, err
	}
	return e.Component, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.categories.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

func (s *Service) Vendors() []string { return append([]string(nil), s.vendors...) }
