package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

// StaticSession fetches pages without running scripts. The wait condition of
// Navigate is ignored and WaitFor only checks the fetched document.
type StaticSession struct {
	cfg Config

	mu   sync.Mutex
	base *colly.Collector
	url  string
	body []byte
	doc  *goquery.Document
}

var _ ports.BrowserSession = (*StaticSession)(nil)

func NewStaticSession(cfg Config) *StaticSession {
	return &StaticSession{cfg: cfg.withDefaults()}
}

func (s *StaticSession) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		return nil
	}
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.cfg.Timeout)
	s.base = c
	return nil
}

func (s *StaticSession) Navigate(ctx context.Context, url string, _ ports.WaitCondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return domain.NetworkError("navigate", ErrNotOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := s.base.Clone()
	var (
		body   []byte
		status int
		ferr   error
	)
	c.OnResponse(func(r *colly.Response) {
		body, status = r.Body, r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		ferr = err
	})
	if err := c.Visit(url); err != nil && ferr == nil {
		ferr = err
	}
	if ferr != nil {
		return classifyFetch(url, status, ferr)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return domain.ParsingError("navigate", err)
	}
	s.url, s.body, s.doc = url, body, doc
	return nil
}

// classifyFetch maps HTTP failures onto the error taxonomy. 429 is a throttle
// signal, 404 is terminal, anything else is worth another attempt.
func classifyFetch(url string, status int, err error) error {
	err = fmt.Errorf("%s: %w", url, err)
	switch {
	case status == http.StatusTooManyRequests:
		return domain.RateLimitError("navigate", err)
	case status == http.StatusNotFound:
		return domain.NotFoundError("navigate", "%v", err)
	}
	return domain.NetworkError("navigate", err)
}

func (s *StaticSession) document(op string) (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, domain.NetworkError(op, ErrNotOpen)
	}
	if s.doc == nil {
		return nil, domain.NetworkError(op, errors.New("no page loaded"))
	}
	return s.doc, nil
}

func (s *StaticSession) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	doc, err := s.document("wait for selector")
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return domain.NetworkError("wait for selector", fmt.Errorf("%q not on page", selector))
	}
	return nil
}

func (s *StaticSession) ExtractText(_ context.Context, selector string) (string, bool, error) {
	doc, err := s.document("extract text")
	if err != nil {
		return "", false, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.Text()), true, nil
}

func (s *StaticSession) ExtractAttribute(_ context.Context, selector, name string) (string, bool, error) {
	doc, err := s.document("extract attribute")
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Find(selector).First().Attr(name)
	return v, ok, nil
}

// Evaluate needs a script engine, which a static fetch does not have.
func (s *StaticSession) Evaluate(context.Context, string, any) error {
	return &domain.Error{Kind: domain.KindOther, Op: "evaluate", Err: errors.ErrUnsupported}
}

func (s *StaticSession) Content(context.Context) (string, error) {
	if _, err := s.document("read page"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.body), nil
}

// Screenshot stores the fetched markup, the closest thing to a capture.
func (s *StaticSession) Screenshot(_ context.Context, tag string) (string, error) {
	if _, err := s.document("screenshot"); err != nil {
		return "", err
	}
	s.mu.Lock()
	body := s.body
	s.mu.Unlock()
	return writeCapture(s.cfg.ScreenshotDir, tag, ".html", body)
}

func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base, s.doc, s.body, s.url = nil, nil, nil, ""
	return nil
}
