package ports

import (
	"context"

	"componentfinder/internal/domain"
)

// VendorClient is the uniform contract every vendor integration meets. Retry
// and rate limiting are applied inside each call.
type VendorClient interface {
	ID() string
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.ComponentRecord, error)
	GetPrice(ctx context.Context, partNumber string) (domain.VendorResult, error)
	CheckStock(ctx context.Context, partNumber string) (domain.StockInfo, error)
	GetDetails(ctx context.Context, partNumber string) (domain.ComponentRecord, error)
	Close() error
}
