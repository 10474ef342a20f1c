package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/adapters/memory"
	"componentfinder/internal/domain"
	"componentfinder/internal/metrics"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func component(id, name string, ages ...time.Duration) domain.MergedComponent {
	c := domain.MergedComponent{ID: id, Name: name, Category: "resistor", LastUpdated: now}
	for i, age := range ages {
		c.Vendors = append(c.Vendors, domain.VendorResult{
			VendorID:    string(rune('a' + i)),
			Price:       decimal.NewFromInt(int64(i + 1)),
			PriceKnown:  true,
			Currency:    "SEK",
			LastUpdated: now.Add(-age),
		})
	}
	return c
}

func newService(t *testing.T, opts ...Option) (*Service, *memory.Store, *clockwork.FakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(now)
	logger, _ := test.NewNullLogger()
	base := []Option{WithClock(clock), WithLogger(logger)}
	return New(store, append(base, opts...)...), store, clock
}

func TestPartition_ByTTL(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)

	require.NoError(t, s.UpsertComponent(ctx, component("old", "resistor 10k old", 25*time.Hour)))
	require.NoError(t, s.UpsertComponent(ctx, component("new", "resistor 10k new", 23*time.Hour)))
	require.NoError(t, s.UpsertComponent(ctx, component("mixed", "resistor 10k mixed", time.Hour, 30*time.Hour)))

	entries, err := s.Lookup(ctx, "resistor 10k", "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	fresh, stale := s.Partition(entries)
	require.Len(t, fresh, 1)
	assert.Equal(t, "new", fresh[0].Component.ID)
	assert.Len(t, stale, 2)
}

func TestPartition_RecomputedOnEveryRead(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newService(t)
	require.NoError(t, s.UpsertComponent(ctx, component("c1", "capacitor", 23*time.Hour)))

	entries, err := s.Lookup(ctx, "capacitor", "")
	require.NoError(t, err)
	fresh, _ := s.Partition(entries)
	assert.Len(t, fresh, 1)

	clock.Advance(2 * time.Hour)
	fresh, stale := s.Partition(entries)
	assert.Empty(t, fresh)
	assert.Len(t, stale, 1)
	assert.True(t, s.IsStale(entries[0].Component.Vendors[0].LastUpdated))
}

func TestWithTTL(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t, WithTTL(time.Hour))
	require.NoError(t, s.UpsertComponent(ctx, component("c1", "led", 2*time.Hour)))
	entries, err := s.Lookup(ctx, "led", "")
	require.NoError(t, err)
	_, stale := s.Partition(entries)
	assert.Len(t, stale, 1)
	assert.Equal(t, time.Hour, s.TTL())
}

func TestUpsertVendorResult_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	c := component("c1", "transistor", time.Hour)
	require.NoError(t, s.UpsertComponent(ctx, c))

	newer := c.Vendors[0]
	newer.Price = decimal.NewFromInt(5)
	newer.LastUpdated = now
	require.NoError(t, s.UpsertVendorResult(ctx, c.ID, newer))

	older := c.Vendors[0]
	older.Price = decimal.NewFromInt(99)
	older.LastUpdated = now.Add(-48 * time.Hour)
	require.NoError(t, s.UpsertVendorResult(ctx, c.ID, older))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Component.Vendors[0].Price.Equal(decimal.NewFromInt(5)))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	require.NoError(t, s.UpsertComponent(ctx, component("c1", "diode", time.Minute)))

	require.NoError(t, s.Invalidate(ctx, "c1"))
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Stale(now, s.TTL()))
	assert.Len(t, s.StaleVendors(got.Component), 1)
}

func TestWriteFailuresAreCacheWriteErrors(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewRegistry()
	s, _, _ := newService(t, WithMetrics(m))

	err := s.UpsertVendorResult(ctx, "missing", domain.VendorResult{VendorID: "a", LastUpdated: now})
	require.Error(t, err)
	assert.Equal(t, domain.KindCacheWrite, domain.KindOf(err))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWriteFails))

	err = s.Invalidate(ctx, "missing")
	assert.Equal(t, domain.KindCacheWrite, domain.KindOf(err))
}

func TestGet_NotFound(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
