package domain

import "time"

// DefaultTTL is how long a vendor result is served without refetching.
const DefaultTTL = 24 * time.Hour

// IsStale is the only staleness test. It is evaluated on every read and never
// stored.
func IsStale(lastUpdated, now time.Time, ttl time.Duration) bool {
	return now.Sub(lastUpdated) > ttl
}

// CacheEntry is a cached merged component as returned by a lookup.
type CacheEntry struct {
	Component MergedComponent
}

// Stale reports whether at least one vendor result has expired. A component
// without vendor results is stale.
func (e CacheEntry) Stale(now time.Time, ttl time.Duration) bool {
	if len(e.Component.Vendors) == 0 {
		return true
	}
	for _, v := range e.Component.Vendors {
		if IsStale(v.LastUpdated, now, ttl) {
			return true
		}
	}
	return false
}

// StaleVendors lists the vendor results that have expired.
func (e CacheEntry) StaleVendors(now time.Time, ttl time.Duration) []VendorResult {
	var out []VendorResult
	for _, v := range e.Component.Vendors {
		if IsStale(v.LastUpdated, now, ttl) {
			out = append(out, v)
		}
	}
	return out
}
