// Package metrics owns the Prometheus collectors of the service. Every
// component takes a *Registry; a nil *Registry records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes.
const (
	LookupFresh = "fresh"
	LookupStale = "stale"
	LookupMiss  = "miss"
)

type Registry struct {
	reg *prometheus.Registry

	VendorRequests  *prometheus.CounterVec
	VendorLatency   *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	CacheWriteFails prometheus.Counter
	RefreshQueued   prometheus.Counter
	RefreshDropped  prometheus.Counter
	RefreshFailed   prometheus.Counter
	RefreshDone     prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	vendorRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "componentfinder_vendor_requests_total",
		Help: "Vendor client calls by vendor, operation and outcome kind.",
	}, []string{"vendor", "op", "result"})
	vendorLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "componentfinder_vendor_request_seconds",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"vendor", "op"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "componentfinder_cache_lookups_total",
	}, []string{"outcome"})
	cacheWriteFails := prometheus.NewCounter(prometheus.CounterOpts{Name: "componentfinder_cache_write_errors_total"})
	refreshQueued := prometheus.NewCounter(prometheus.CounterOpts{Name: "componentfinder_refresh_queued_total"})
	refreshDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "componentfinder_refresh_dropped_total"})
	refreshFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "componentfinder_refresh_failed_total"})
	refreshDone := prometheus.NewCounter(prometheus.CounterOpts{Name: "componentfinder_refresh_completed_total"})

	r.MustRegister(vendorRequests, vendorLatency, cacheLookups, cacheWriteFails,
		refreshQueued, refreshDropped, refreshFailed, refreshDone)
	return &Registry{
		reg:             r,
		VendorRequests:  vendorRequests,
		VendorLatency:   vendorLatency,
		CacheLookups:    cacheLookups,
		CacheWriteFails: cacheWriteFails,
		RefreshQueued:   refreshQueued,
		RefreshDropped:  refreshDropped,
		RefreshFailed:   refreshFailed,
		RefreshDone:     refreshDone,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObserveVendor records one vendor call. result is "ok" or an error kind.
func (r *Registry) ObserveVendor(vendor, op, result string, took time.Duration) {
	if r == nil {
		return
	}
	r.VendorRequests.WithLabelValues(vendor, op, result).Inc()
	r.VendorLatency.WithLabelValues(vendor, op).Observe(took.Seconds())
}

func (r *Registry) Lookup(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.CacheLookups.WithLabelValues(outcome).Add(float64(n))
}

func (r *Registry) CacheWriteFailed() {
	if r != nil {
		r.CacheWriteFails.Inc()
	}
}

func (r *Registry) Refresh(event string) {
	if r == nil {
		return
	}
	switch event {
	case "queued":
		r.RefreshQueued.Inc()
	case "dropped":
		r.RefreshDropped.Inc()
	case "failed":
		r.RefreshFailed.Inc()
	case "done":
		r.RefreshDone.Inc()
	}
}
