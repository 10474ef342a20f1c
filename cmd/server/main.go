package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"componentfinder/internal/adapters/browser"
	httpadapter "componentfinder/internal/adapters/http"
	"componentfinder/internal/adapters/memory"
	pebblestore "componentfinder/internal/adapters/pebble"
	pg "componentfinder/internal/adapters/postgres"
	"componentfinder/internal/adapters/redisclaims"
	"componentfinder/internal/config"
	"componentfinder/internal/extract"
	"componentfinder/internal/metrics"
	"componentfinder/internal/ports"
	"componentfinder/internal/retry"
	cachesvc "componentfinder/internal/services/cache"
	catalogsvc "componentfinder/internal/services/catalog"
	searchsvc "componentfinder/internal/services/search"
	"componentfinder/internal/vendors"
	"componentfinder/internal/workers/refresher"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry()

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// Storage
	var components ports.ComponentStore
	var claims ports.RefreshClaims
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db connect error")
		}
		cleanup = append(cleanup, db.Close)
		if err := db.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("db migrate error")
		}
		components = db
		claims = db.Claims()
	case config.StorePebble:
		s, err := pebblestore.Open(cfg.PebbleDir)
		if err != nil {
			log.WithError(err).Fatal("pebble open error")
		}
		cleanup = append(cleanup, func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("pebble close error")
			}
		})
		components = s
	default:
		components = memory.NewStore()
	}
	if cfg.RedisURL != "" {
		rc, err := redisclaims.New(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("redis config error")
		}
		if err := rc.Ping(ctx); err != nil {
			log.WithError(err).Fatal("redis unreachable")
		}
		cleanup = append(cleanup, func() { _ = rc.Close() })
		claims = rc
	}
	if claims == nil {
		claims = memory.NewClaims(clockwork.NewRealClock())
	}
	log.WithField("store", cfg.StoreBackend).Info("storage ready")

	// Vendors
	profiles, err := extract.LoadProfiles(cfg.VendorProfiles)
	if err != nil {
		log.WithError(err).Fatal("vendor profiles")
	}
	policy := retry.DefaultPolicy()
	policy.MaxRetries = uint64(cfg.RetryMax)
	if cfg.RetryBase > 0 {
		policy.Base = cfg.RetryBase
	}
	sessionCfg := browser.Config{
		Headless:      cfg.BrowserHeadless,
		Bin:           cfg.BrowserBin,
		Timeout:       cfg.BrowserTimeout,
		ScreenshotDir: cfg.ScreenshotDir,
		Stealth:       true,
	}
	clients := make([]ports.VendorClient, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		client := vendors.NewScraperClient(p, newSession(cfg.BrowserMode, p, sessionCfg),
			vendors.WithLogger(log),
			vendors.WithMetrics(reg),
			vendors.WithRetryPolicy(policy),
			vendors.WithWaitTimeout(cfg.BrowserTimeout),
		)
		clients = append(clients, client)
		cleanup = append(cleanup, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).WithField("vendor", client.ID()).Warn("vendor close error")
			}
		})
	}

	// Services
	cache := cachesvc.New(components, cachesvc.WithTTL(cfg.CacheTTL), cachesvc.WithLogger(log), cachesvc.WithMetrics(reg))
	pool := refresher.New(cfg.RefreshQueue, claims, refresher.WithLogger(log), refresher.WithMetrics(reg))
	searcher := searchsvc.New(clients, cache,
		searchsvc.WithRefresher(pool),
		searchsvc.WithInlineRunner(pool),
		searchsvc.WithLogger(log),
	)
	catalog := catalogsvc.New(cache, components, searcher.Vendors())

	pool.Run(ctx, searcher, cfg.RefreshWorkers)
	log.WithField("workers", cfg.RefreshWorkers).Info("refresh workers started")

	srv := httpadapter.New(searcher, catalog, searcher,
		httpadapter.WithLogger(log),
		httpadapter.WithMetricsHandler(reg.Handler()),
	)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	server := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "vendors": searcher.Vendors()}).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("refresh pool did not drain")
	}
	cancel()
}

func newSession(mode string, p *extract.Profile, cfg browser.Config) ports.BrowserSession {
	switch {
	case mode == config.BrowserStatic:
		return browser.NewStaticSession(cfg)
	case mode == config.BrowserRod:
		return browser.NewRodSession(cfg)
	case p.Session == extract.SessionStatic:
		return browser.NewStaticSession(cfg)
	default:
		return browser.NewRodSession(cfg)
	}
}
