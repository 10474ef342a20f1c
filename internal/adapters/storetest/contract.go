// Package storetest is the shared behaviour suite for ports.ComponentStore
// implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func qty(n int) *int { return &n }

// Resistor is a component with no listings attached.
func Resistor() domain.MergedComponent {
	return domain.MergedComponent{
		ID:             "0b3c6d1e-7d2a-5a8e-9f10-2f7c2b9d4e11",
		Key:            "CFR25JB5210K",
		PartNumber:     "CFR-25JB-52-10K",
		Name:           "Motstånd kolfilm 0.25W 10kohm",
		Description:    "Carbon film resistor 5%",
		Manufacturer:   "Yageo",
		Category:       "resistor",
		Specifications: map[string]any{"Resistans": 10000.0, "Resistans_unit": "Ω"},
		LastUpdated:    base,
	}
}

func Listing(vendor string, price string, at time.Time) domain.VendorResult {
	return domain.VendorResult{
		VendorID:      vendor,
		PartNumber:    vendor + "-40810410",
		Price:         decimal.RequireFromString(price),
		PriceKnown:    true,
		Currency:      "SEK",
		InStock:       true,
		StockQuantity: qty(1250),
		BreakPoints:   []domain.BreakPoint{{Quantity: 10, Price: decimal.RequireFromString("1.60")}},
		URL:           "https://www.electrokit.com/produkt/" + vendor,
		LastUpdated:   at,
	}
}

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.ComponentStore) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, found, err := s.GetComponent(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("upsert and get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := Resistor()
		require.NoError(t, s.UpsertComponent(ctx, c))
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("kjell", "2.50", base)))
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "1.95", base)))

		got, found, err := s.GetComponent(ctx, c.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, c.Manufacturer, got.Manufacturer)
		assert.Equal(t, "resistor", got.Category)
		assert.Equal(t, "Ω", got.Specifications["Resistans_unit"])
		require.Len(t, got.Vendors, 2)
		assert.Equal(t, "electrokit", got.Vendors[0].VendorID)
		assert.True(t, got.Vendors[0].Price.Equal(decimal.RequireFromString("1.95")))
		assert.True(t, got.Vendors[0].LastUpdated.Equal(base))
		require.NotNil(t, got.Vendors[0].StockQuantity)
		assert.Equal(t, 1250, *got.Vendors[0].StockQuantity)
		require.Len(t, got.Vendors[0].BreakPoints, 1)
		assert.Equal(t, "electrokit-40810410", got.Vendors[0].PartNumber)
	})

	t.Run("listing needs its component", func(t *testing.T) {
		s := newStore(t)
		err := s.UpsertVendorListing(context.Background(), "missing", Listing("electrokit", "1", base))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("last write wins", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := Resistor()
		require.NoError(t, s.UpsertComponent(ctx, c))
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "1.95", base.Add(time.Hour))))
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "9.99", base)))
		// same stamp twice is a no-op change
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "1.95", base.Add(time.Hour))))

		older := c
		older.Name = "stale name"
		older.LastUpdated = base.Add(-time.Hour)
		require.NoError(t, s.UpsertComponent(ctx, older))

		got, _, err := s.GetComponent(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		require.Len(t, got.Vendors, 1)
		assert.True(t, got.Vendors[0].Price.Equal(decimal.RequireFromString("1.95")))
	})

	t.Run("find by query", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		r := Resistor()
		led := domain.MergedComponent{ID: "led-1", Name: "LED 5mm röd", Category: "led", LastUpdated: base}
		require.NoError(t, s.UpsertComponent(ctx, r))
		require.NoError(t, s.UpsertComponent(ctx, led))
		require.NoError(t, s.UpsertVendorListing(ctx, r.ID, Listing("electrokit", "1.95", base)))

		got, err := s.FindComponentsByQuery(ctx, "10KOHM yageo", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, r.ID, got[0].ID)
		assert.Len(t, got[0].Vendors, 1)

		got, err = s.FindComponentsByQuery(ctx, "cfr-25jb", "RESISTOR")
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = s.FindComponentsByQuery(ctx, "10kohm", "led")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.FindComponentsByQuery(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("expire listings", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := Resistor()
		require.NoError(t, s.UpsertComponent(ctx, c))
		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "1.95", base)))
		require.NoError(t, s.ExpireListings(ctx, c.ID))

		got, _, err := s.GetComponent(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, got.Vendors, 1)
		assert.True(t, domain.IsStale(got.Vendors[0].LastUpdated, base, domain.DefaultTTL))

		require.NoError(t, s.UpsertVendorListing(ctx, c.ID, Listing("electrokit", "2.10", base)))
		got, _, err = s.GetComponent(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, got.Vendors[0].Price.Equal(decimal.RequireFromString("2.10")))

		assert.ErrorIs(t, s.ExpireListings(ctx, "missing"), domain.ErrNotFound)
	})

	t.Run("categories", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for i, cat := range []string{"resistor", "led", "resistor", ""} {
			c := Resistor()
			c.ID = string(rune('a' + i))
			c.Category = cat
			require.NoError(t, s.UpsertComponent(ctx, c))
		}
		got, err := s.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"led", "resistor"}, got)
	})
}
