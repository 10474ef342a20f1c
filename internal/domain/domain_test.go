package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsStale(now.Add(-25*time.Hour), now, DefaultTTL))
	assert.False(t, IsStale(now.Add(-23*time.Hour), now, DefaultTTL))
	assert.False(t, IsStale(now.Add(-DefaultTTL), now, DefaultTTL), "exactly TTL old is still fresh")
}

func TestCacheEntry_Stale(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{Component: MergedComponent{Vendors: []VendorResult{
		{VendorID: "a", LastUpdated: now.Add(-time.Hour)},
		{VendorID: "b", LastUpdated: now.Add(-30 * time.Hour)},
	}}}

	assert.True(t, entry.Stale(now, DefaultTTL))
	stale := entry.StaleVendors(now, DefaultTTL)
	require.Len(t, stale, 1)
	assert.Equal(t, "b", stale[0].VendorID)

	entry.Component.Vendors = entry.Component.Vendors[:1]
	assert.False(t, entry.Stale(now, DefaultTTL))

	assert.True(t, CacheEntry{}.Stale(now, DefaultTTL))
}

func TestMergedComponent_Primary(t *testing.T) {
	m := MergedComponent{Vendors: []VendorResult{
		{VendorID: "cheap-out", Price: decimal.RequireFromString("0.50"), PriceKnown: true},
		{VendorID: "in-stock", Price: decimal.RequireFromString("1.20"), PriceKnown: true, InStock: true},
		{VendorID: "in-stock-cheaper", Price: decimal.RequireFromString("0.90"), PriceKnown: true, InStock: true},
	}}
	p, ok := m.Primary()
	require.True(t, ok)
	assert.Equal(t, "in-stock-cheaper", p.VendorID)

	m.Vendors = m.Vendors[:1]
	m.Vendors = append(m.Vendors, VendorResult{VendorID: "unknown", PriceKnown: false})
	p, _ = m.Primary()
	assert.Equal(t, "cheap-out", p.VendorID, "an unparseable price never wins over a known one")

	_, ok = MergedComponent{}.Primary()
	assert.False(t, ok)
}

func TestError_Classification(t *testing.T) {
	err := fmt.Errorf("search: %w", NetworkError("navigate", errors.New("timeout")))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, KindNetwork, KindOf(err))

	nf := NotFoundError("get price", "product not found: %s", "ABC")
	assert.False(t, IsRetryable(nf))
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.Equal(t, "NOT_FOUND get price: product not found: ABC", nf.Error())

	tagged := WithVendor(nf, "electrokit")
	assert.Equal(t, "electrokit: NOT_FOUND get price: product not found: ABC", tagged.Error())
	assert.Empty(t, nf.Vendor, "tagging copies the error")

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
}
