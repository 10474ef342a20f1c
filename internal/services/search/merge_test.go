package search

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/domain"
	"componentfinder/internal/extract"
)

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ComponentRecord
		want string
	}{
		{"mpn wins", domain.ComponentRecord{MPN: "cfr-25jb 52/10k", PartNumber: "41000"}, "part:CFR25JB5210K"},
		{"vendor part number ignored", domain.ComponentRecord{PartNumber: "87123", Name: "NE555 Timer", Category: "ic"}, "name:ne555 timer|ic"},
		{"name and category", domain.ComponentRecord{Name: "  Röd  LED 5mm ", Category: "LED"}, "name:röd led 5mm|led"},
		{"punctuation only part number", domain.ComponentRecord{PartNumber: "--", Name: "x", Category: "other"}, "name:x|other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupKey(tt.rec))
		})
	}
}

func TestComponentID_Stable(t *testing.T) {
	assert.Equal(t, ComponentID("part:NE555P"), ComponentID("part:NE555P"))
	assert.NotEqual(t, ComponentID("part:NE555P"), ComponentID("part:NE556"))
}

func TestMerge(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.ComponentRecord{
		{Vendor: "b", PartNumber: "B-1", MPN: "NE555P", Name: "NE555 timer", Category: domain.DefaultCategory,
			Price: decimal.NewFromInt(5), PriceKnown: true, Specifications: map[string]any{"package": "DIP-8"}, LastUpdated: t0},
		{Vendor: "a", PartNumber: "A-9", MPN: "ne555p", Name: "555 Timer IC", Category: "ic", Manufacturer: "TI",
			Price: decimal.NewFromInt(4), PriceKnown: true, Specifications: map[string]any{"package": "SOIC", "supply": "5 V"}, LastUpdated: t0.Add(time.Hour)},
		{Vendor: "a", PartNumber: "A-10", MPN: "NE555P", Name: "duplicate from a", Price: decimal.NewFromInt(1), LastUpdated: t0},
		{Vendor: "a", PartNumber: "LM358", Name: "LM358 op-amp", Category: "ic", LastUpdated: t0},
	}

	got := Merge(records)
	require.Len(t, got, 2)

	timer := got[0]
	assert.Equal(t, "NE555P", timer.PartNumber)
	assert.Equal(t, "NE555 timer", timer.Name)
	assert.Equal(t, "ic", timer.Category, "specific category replaces the default one")
	assert.Equal(t, "TI", timer.Manufacturer)
	assert.Equal(t, map[string]any{"package": "DIP-8", "supply": "5 V"}, timer.Specifications)
	assert.Equal(t, t0.Add(time.Hour), timer.LastUpdated)
	require.Len(t, timer.Vendors, 2)
	assert.Equal(t, "a", timer.Vendors[0].VendorID)
	assert.True(t, timer.Vendors[0].Price.Equal(decimal.NewFromInt(4)), "first record per vendor wins")
	assert.Equal(t, "A-9", timer.Vendors[0].PartNumber)
	assert.Equal(t, ComponentID("part:NE555P"), timer.ID)

	assert.Equal(t, "LM358", got[1].PartNumber, "vendor part number shown when no MPN is known")
	assert.Equal(t, "name:lm358 op-amp|ic", got[1].Key)
	assert.Len(t, got[1].Vendors, 1)
}

const shopProfiles = `
vendors:
  - id: alpha
    base_url: https://alpha.example
    search_url: https://alpha.example/?q={query}
    listing: {item: .hit, name: .title, link: a, sku: .sku, category: .cat}
    categories: {Resistors: resistor}
  - id: beta
    base_url: https://beta.example
    search_url: https://beta.example/?q={query}
    sku_is_mpn: true
    listing: {item: .hit, name: .title, link: a, sku: .sku}
  - id: gamma
    base_url: https://gamma.example
    search_url: https://gamma.example/?q={query}
    sku_is_mpn: true
    listing: {item: .hit, name: .title, link: a, sku: .sku}
`

func hits(items ...[4]string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, `<div class="hit"><a href="%s"><span class="title">%s</span></a><span class="sku">%s</span><span class="cat">%s</span></div>`,
			it[0], it[1], it[2], it[3])
	}
	return b.String()
}

func TestMerge_ListingsFromDifferentShops(t *testing.T) {
	shops, err := extract.ParseProfiles([]byte(shopProfiles))
	require.NoError(t, err)
	builtin, err := extract.DefaultProfiles()
	require.NoError(t, err)
	profiles := map[string]*extract.Profile{"electrokit": &builtin[0]}
	for i := range shops {
		profiles[shops[i].ID] = &shops[i]
	}

	pages := []struct{ vendor, pageURL, markup string }{
		{"electrokit", "https://www.electrokit.com/en/search/?s=10k", `<div class="product-grid"><div class="product-item">
			<a class="product-link" href="/produkt/motstand-kolfilm-0-25w-10kohm-10k/"><span class="product-title">Motstånd kolfilm 0.25W 10kohm (10k)</span></a>
		</div></div>`},
		{"alpha", "https://alpha.example/?q=10k", hits(
			[4]string{"/item/87123", "Motstånd kolfilm 0.25W 10kohm (10k)", "87123", "Resistors"},
		)},
		{"beta", "https://beta.example/?q=10k", hits(
			[4]string{"/p/cfr", "Carbon film resistor 10k", "CFR-25JB-52-10K", ""},
		)},
		{"gamma", "https://gamma.example/?q=10k", hits(
			[4]string{"/p/9", "CFR-25 10 kOhm 1/4 W", "Art.nr: cfr25jb-52-10k", ""},
		)},
	}
	var records []domain.ComponentRecord
	for _, pg := range pages {
		recs, err := profiles[pg.vendor].ParseListing(pg.markup, pg.pageURL)
		require.NoError(t, err, pg.vendor)
		require.Len(t, recs, 1, pg.vendor)
		records = append(records, recs...)
	}
	require.Equal(t, "87123", records[1].PartNumber)
	require.Equal(t, "motstand-kolfilm-0-25w-10kohm-10k", records[0].PartNumber)

	got := Merge(records)
	require.Len(t, got, 2)

	byName := got[0]
	assert.Equal(t, "name:motstånd kolfilm 0.25w 10kohm (10k)|resistor", byName.Key)
	require.Len(t, byName.Vendors, 2)
	assert.Equal(t, "alpha", byName.Vendors[0].VendorID)
	assert.Equal(t, "electrokit", byName.Vendors[1].VendorID)

	byMPN := got[1]
	assert.Equal(t, "part:CFR25JB5210K", byMPN.Key)
	assert.Equal(t, "CFR-25JB-52-10K", byMPN.PartNumber)
	require.Len(t, byMPN.Vendors, 2)
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil))
}
