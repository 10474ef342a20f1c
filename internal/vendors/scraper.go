// Package vendors implements ports.VendorClient for sites that are scraped
// through a browser session.
package vendors

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"componentfinder/internal/domain"
	"componentfinder/internal/extract"
	"componentfinder/internal/metrics"
	"componentfinder/internal/ports"
	"componentfinder/internal/ratelimit"
	"componentfinder/internal/retry"
)

const defaultWaitTimeout = 15 * time.Second

// ScraperClient queries one vendor through a browser session and a vendor
// profile. Calls are serialised on the session; each attempt first takes a
// rate limit token.
type ScraperClient struct {
	profile *extract.Profile
	session ports.BrowserSession
	limiter retry.Acquirer
	policy  retry.Policy
	clock   clockwork.Clock
	log     logrus.FieldLogger
	metrics *metrics.Registry
	wait    time.Duration

	mu     sync.Mutex
	opened bool
}

var _ ports.VendorClient = (*ScraperClient)(nil)

type Option func(*ScraperClient)

func WithClock(c clockwork.Clock) Option { return func(s *ScraperClient) { s.clock = c } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *ScraperClient) { s.log = l } }

func WithMetrics(m *metrics.Registry) Option { return func(s *ScraperClient) { s.metrics = m } }

func WithRetryPolicy(p retry.Policy) Option { return func(s *ScraperClient) { s.policy = p } }

// WithLimiter replaces the token bucket built from the profile's rate.
func WithLimiter(l retry.Acquirer) Option { return func(s *ScraperClient) { s.limiter = l } }

// WithWaitTimeout bounds how long a page may take to show its results.
func WithWaitTimeout(d time.Duration) Option { return func(s *ScraperClient) { s.wait = d } }

func NewScraperClient(p *extract.Profile, session ports.BrowserSession, opts ...Option) *ScraperClient {
	c := &ScraperClient{
		profile: p,
		session: session,
		policy:  retry.DefaultPolicy(),
		clock:   clockwork.NewRealClock(),
		log:     logrus.StandardLogger(),
		wait:    defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(p.Burst, p.RequestsPerSecond, ratelimit.WithClock(c.clock))
	}
	c.log = c.log.WithField("vendor", p.ID)
	return c
}

func (c *ScraperClient) ID() string { return c.profile.ID }

// Search returns the vendor's listing for query in page order. A vendor with
// no matches gives an empty slice, not an error.
func (c *ScraperClient) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.ComponentRecord, error) {
	start := c.clock.Now()
	recs, err := c.search(ctx, query)
	c.observe("search", start, err)
	if err != nil {
		return nil, domain.WithVendor(err, c.ID())
	}

	now := c.clock.Now()
	out := recs[:0]
	for _, r := range recs {
		if opts.Category != "" && !strings.EqualFold(r.Category, opts.Category) {
			continue
		}
		r.LastUpdated = now
		out = append(out, r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	c.log.WithFields(logrus.Fields{"query": query, "results": len(out)}).Debug("vendor search done")
	return out, nil
}

// GetDetails finds partNumber through a single-result search and reads its
// product page.
func (c *ScraperClient) GetDetails(ctx context.Context, partNumber string) (domain.ComponentRecord, error) {
	start := c.clock.Now()
	rec, err := c.details(ctx, partNumber)
	c.observe("details", start, err)
	if err != nil {
		return domain.ComponentRecord{}, domain.WithVendor(err, c.ID())
	}
	return rec, nil
}

// GetPrice re-reads the product page of partNumber.
func (c *ScraperClient) GetPrice(ctx context.Context, partNumber string) (domain.VendorResult, error) {
	start := c.clock.Now()
	rec, err := c.details(ctx, partNumber)
	c.observe("price", start, err)
	if err != nil {
		return domain.VendorResult{}, domain.WithVendor(err, c.ID())
	}
	return rec.VendorResult(), nil
}

func (c *ScraperClient) CheckStock(ctx context.Context, partNumber string) (domain.StockInfo, error) {
	start := c.clock.Now()
	rec, err := c.details(ctx, partNumber)
	c.observe("stock", start, err)
	if err != nil {
		return domain.StockInfo{}, domain.WithVendor(err, c.ID())
	}
	return domain.StockInfo{
		InStock:      rec.InStock,
		Quantity:     rec.StockQuantity,
		DeliveryDays: rec.DeliveryDays,
		LastChecked:  rec.LastUpdated,
	}, nil
}

func (c *ScraperClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return nil
	}
	c.opened = false
	return c.session.Close()
}

func (c *ScraperClient) search(ctx context.Context, query string) ([]domain.ComponentRecord, error) {
	return retry.Value(ctx, c.policy, c.limiter, func(ctx context.Context) ([]domain.ComponentRecord, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		pageURL := c.profile.SearchPageURL(query)
		markup, err := c.load(ctx, pageURL, c.profile.ResultsSelector())
		if err != nil {
			return nil, err
		}
		recs, err := c.profile.ParseListing(markup, pageURL)
		if err != nil {
			return nil, c.capture(ctx, "search", pageURL, err)
		}
		return recs, nil
	})
}

func (c *ScraperClient) details(ctx context.Context, partNumber string) (domain.ComponentRecord, error) {
	partNumber = strings.TrimSpace(partNumber)
	hits, err := c.search(ctx, partNumber)
	if err != nil {
		return domain.ComponentRecord{}, err
	}
	if len(hits) == 0 {
		return domain.ComponentRecord{}, domain.NotFoundError("get details", "product not found: %s", partNumber)
	}
	productURL := hits[0].URL

	rec, err := retry.Value(ctx, c.policy, c.limiter, func(ctx context.Context) (domain.ComponentRecord, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		markup, err := c.load(ctx, productURL, c.profile.DetailSelector())
		if err != nil {
			return domain.ComponentRecord{}, err
		}
		rec, err := c.profile.ParseDetail(markup, productURL)
		if err != nil {
			return domain.ComponentRecord{}, c.capture(ctx, "details", productURL, err)
		}
		return rec, nil
	})
	if err != nil {
		return domain.ComponentRecord{}, err
	}
	rec.LastUpdated = c.clock.Now()
	return rec, nil
}

// load navigates to pageURL, waits for selector and returns the markup. Must
// be called with c.mu held.
func (c *ScraperClient) load(ctx context.Context, pageURL, selector string) (string, error) {
	if !c.opened {
		if err := c.session.Open(ctx); err != nil {
			return "", asNetwork("open session", err)
		}
		c.opened = true
	}
	if err := c.session.Navigate(ctx, pageURL, ports.WaitLoad); err != nil {
		return "", asNetwork("navigate", err)
	}
	if err := c.session.WaitFor(ctx, selector, c.wait); err != nil {
		return "", asNetwork("wait for results", err)
	}
	markup, err := c.session.Content(ctx)
	if err != nil {
		return "", asNetwork("read page", err)
	}
	return markup, nil
}

// capture saves a screenshot of a page that failed to parse and records where
// it went on the error.
func (c *ScraperClient) capture(ctx context.Context, tag, pageURL string, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindParsing {
		return err
	}
	details := map[string]string{"url": pageURL}
	path, serr := c.session.Screenshot(ctx, c.ID()+"-"+tag)
	if serr != nil {
		c.log.WithError(serr).Warn("screenshot failed")
	} else {
		details["screenshot"] = path
	}
	de.Details = details
	c.log.WithFields(logrus.Fields{"url": pageURL, "screenshot": path}).WithError(err).Warn("page did not parse")
	return de
}

func (c *ScraperClient) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	c.metrics.ObserveVendor(c.ID(), op, result, c.clock.Since(start))
}

// asNetwork classifies session failures that are not already domain errors.
// Context errors pass through so callers see cancellation as such.
func asNetwork(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NetworkError(op, err)
}
