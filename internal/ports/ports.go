package ports

import (
	"context"

	"componentfinder/internal/domain"
)

// Searcher is the orchestrator surface the HTTP layer calls.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) ([]domain.MergedComponent, error)
}

// Catalog reads what is already cached.
type Catalog interface {
	GetComponent(ctx context.Context, id string) (domain.MergedComponent, error)
	Categories(ctx context.Context) ([]string, error)
	Vendors() []string
}

// Refresher re-fetches cached components, queued or while the caller waits.
type Refresher interface {
	Invalidate(ctx context.Context, componentID string) error
	RefreshNow(ctx context.Context, componentID string) (domain.MergedComponent, error)
}
