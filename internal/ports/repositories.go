package ports

import (
	"context"

	"componentfinder/internal/domain"
)

// ComponentStore is the persistence boundary. Upserts are idempotent, keyed by
// component id (and vendor for listings), and last-write-wins on LastUpdated.
type ComponentStore interface {
	GetComponent(ctx context.Context, id string) (c domain.MergedComponent, found bool, err error)
	// FindComponentsByQuery matches every whitespace-separated term of query
	// against name, description, part number and manufacturer, case-insensitively.
	// An empty category matches all categories.
	FindComponentsByQuery(ctx context.Context, query string, category string) ([]domain.MergedComponent, error)
	// UpsertComponent writes descriptive fields only; c.Vendors is ignored.
	UpsertComponent(ctx context.Context, c domain.MergedComponent) error
	UpsertVendorListing(ctx context.Context, componentID string, r domain.VendorResult) error
	// ExpireListings makes every listing of a component stale without deleting it.
	ExpireListings(ctx context.Context, componentID string) error
	Categories(ctx context.Context) ([]string, error)
}
