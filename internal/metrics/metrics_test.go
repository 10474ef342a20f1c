package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.ObserveVendor("electrokit", "search", "ok", 120*time.Millisecond)
	r.ObserveVendor("electrokit", "search", "NETWORK", time.Second)
	r.Lookup(LookupFresh, 3)
	r.Lookup(LookupMiss, 0)
	r.CacheWriteFailed()
	r.Refresh("queued")
	r.Refresh("queued")
	r.Refresh("failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.VendorRequests.WithLabelValues("electrokit", "search", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(LookupFresh)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(LookupMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheWriteFails))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RefreshQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RefreshFailed))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "componentfinder_vendor_requests_total")
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveVendor("v", "op", "ok", time.Second)
		r.Lookup(LookupStale, 1)
		r.CacheWriteFailed()
		r.Refresh("done")
	})
}
