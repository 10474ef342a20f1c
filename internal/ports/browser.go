package ports

import (
	"context"
	"time"
)

// WaitCondition tells Navigate when a page counts as loaded.
type WaitCondition int

const (
	WaitLoad WaitCondition = iota
	WaitNetworkIdle
	WaitDOMStable
)

// BrowserSession drives a single page. Lookups of missing selectors return
// found=false rather than an error; only hard failures (session not open,
// navigation or wait timeouts) are errors, reported as domain NETWORK errors.
type BrowserSession interface {
	Open(ctx context.Context) error
	Navigate(ctx context.Context, url string, wait WaitCondition) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	ExtractText(ctx context.Context, selector string) (text string, found bool, err error)
	ExtractAttribute(ctx context.Context, selector, name string) (value string, found bool, err error)
	// Evaluate runs a read-only script against the page and decodes its JSON
	// result into dest.
	Evaluate(ctx context.Context, script string, dest any) error
	// Content returns the current document markup.
	Content(ctx context.Context) (string, error)
	// Screenshot stores a capture of the page and returns where it went.
	Screenshot(ctx context.Context, tag string) (string, error)
	Close() error
}
