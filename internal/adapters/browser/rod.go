// Package browser implements ports.BrowserSession on top of a headless Chrome
// (go-rod) and a plain HTTP fetcher (colly) for server-rendered shops.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

// DefaultUserAgent is sent by both session kinds.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ErrNotOpen is returned by every page operation before Open.
var ErrNotOpen = errors.New("browser session not open")

type Config struct {
	Headless      bool
	Bin           string
	UserAgent     string
	Timeout       time.Duration
	ScreenshotDir string
	Stealth       bool
	ViewportW     int
	ViewportH     int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ViewportW <= 0 || c.ViewportH <= 0 {
		c.ViewportW, c.ViewportH = 1920, 1080
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = filepath.Join(os.TempDir(), "componentfinder-screenshots")
	}
	return c
}

// RodSession drives one tab of a headless Chrome it launches itself.
type RodSession struct {
	cfg Config

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

var _ ports.BrowserSession = (*RodSession)(nil)

func NewRodSession(cfg Config) *RodSession {
	return &RodSession{cfg: cfg.withDefaults()}
}

func (s *RodSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return nil
	}

	l := launcher.New().Headless(s.cfg.Headless).NoSandbox(true)
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	u, err := l.Context(ctx).Launch()
	if err != nil {
		return domain.NetworkError("launch browser", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return domain.NetworkError("connect browser", err)
	}

	var page *rod.Page
	if s.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		l.Kill()
		return domain.NetworkError("open page", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
		_ = b.Close()
		l.Kill()
		return domain.NetworkError("set user agent", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportW,
		Height:            s.cfg.ViewportH,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = b.Close()
		l.Kill()
		return domain.NetworkError("set viewport", err)
	}

	s.launcher, s.browser, s.page = l, b, page
	return nil
}

// current returns the page bound to ctx with the per-operation timeout. The
// caller must call release once the operation is done.
func (s *RodSession) current(ctx context.Context, op string) (page *rod.Page, release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, nil, domain.NetworkError(op, ErrNotOpen)
	}
	page, release = bound(ctx, s.page, s.cfg.Timeout)
	return page, release, nil
}

// bound clones page onto ctx with timeout d. The returned func stops the
// timer.
func bound(ctx context.Context, page *rod.Page, d time.Duration) (*rod.Page, func()) {
	if d <= 0 {
		return page.Context(ctx), func() {}
	}
	p := page.Context(ctx).Timeout(d)
	return p, func() { p.CancelTimeout() }
}

func (s *RodSession) Navigate(ctx context.Context, url string, wait ports.WaitCondition) error {
	page, release, err := s.current(ctx, "navigate")
	if err != nil {
		return err
	}
	defer release()
	if err := page.Navigate(url); err != nil {
		return domain.NetworkError("navigate", fmt.Errorf("%s: %w", url, err))
	}
	switch wait {
	case ports.WaitNetworkIdle:
		err = page.WaitIdle(s.cfg.Timeout)
	case ports.WaitDOMStable:
		err = page.WaitDOMStable(time.Second, 0)
	default:
		err = page.WaitLoad()
	}
	if err != nil {
		return domain.NetworkError("wait for page", fmt.Errorf("%s: %w", url, err))
	}
	return nil
}

func (s *RodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	page, release, err := s.current(ctx, "wait for selector")
	if err != nil {
		return err
	}
	defer release()
	if timeout > 0 {
		var stop func()
		page, stop = bound(page.GetContext(), page, timeout)
		defer stop()
	}
	if _, err := page.Element(selector); err != nil {
		return domain.NetworkError("wait for selector", fmt.Errorf("%q: %w", selector, err))
	}
	return nil
}

func (s *RodSession) ExtractText(ctx context.Context, selector string) (string, bool, error) {
	page, release, err := s.current(ctx, "extract text")
	if err != nil {
		return "", false, err
	}
	defer release()
	ok, el, err := page.Has(selector)
	if err != nil {
		return "", false, domain.NetworkError("extract text", err)
	}
	if !ok {
		return "", false, nil
	}
	text, err := el.Text()
	if err != nil {
		return "", false, domain.NetworkError("extract text", err)
	}
	return strings.TrimSpace(text), true, nil
}

func (s *RodSession) ExtractAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	page, release, err := s.current(ctx, "extract attribute")
	if err != nil {
		return "", false, err
	}
	defer release()
	ok, el, err := page.Has(selector)
	if err != nil {
		return "", false, domain.NetworkError("extract attribute", err)
	}
	if !ok {
		return "", false, nil
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, domain.NetworkError("extract attribute", err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Evaluate runs script, which must be a function expression such as
// `() => document.title`, and decodes its result into dest.
func (s *RodSession) Evaluate(ctx context.Context, script string, dest any) error {
	page, release, err := s.current(ctx, "evaluate")
	if err != nil {
		return err
	}
	defer release()
	res, err := page.Eval(script)
	if err != nil {
		return domain.NetworkError("evaluate", err)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), dest); err != nil {
		return domain.ParsingError("evaluate", err)
	}
	return nil
}

func (s *RodSession) Content(ctx context.Context) (string, error) {
	page, release, err := s.current(ctx, "read page")
	if err != nil {
		return "", err
	}
	defer release()
	html, err := page.HTML()
	if err != nil {
		return "", domain.NetworkError("read page", err)
	}
	return html, nil
}

func (s *RodSession) Screenshot(ctx context.Context, tag string) (string, error) {
	page, release, err := s.current(ctx, "screenshot")
	if err != nil {
		return "", err
	}
	defer release()
	img, err := page.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return "", domain.NetworkError("screenshot", err)
	}
	return writeCapture(s.cfg.ScreenshotDir, tag, ".png", img)
}

func (s *RodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher, s.browser, s.page = nil, nil, nil
	return err
}

func writeCapture(dir, tag, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", sanitize(tag), time.Now().UTC().Format("20060102T150405.000"), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

func sanitize(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, tag)
}
