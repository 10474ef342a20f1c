package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/domain"
)

func electrokit(t *testing.T) *Profile {
	t.Helper()
	profiles, err := DefaultProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	return &profiles[0]
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestParseListing(t *testing.T) {
	p := electrokit(t)

	recs, err := p.ParseListing(fixture(t, "listing.html"), "https://www.electrokit.com/en/search/?s=10k")
	require.NoError(t, err)
	require.Len(t, recs, 2, "off-site result must be dropped")

	r := recs[0]
	assert.Equal(t, "electrokit", r.Vendor)
	assert.Equal(t, "Motstånd kolfilm 0.25W 10kohm (10k)", r.Name)
	assert.Equal(t, "https://www.electrokit.com/produkt/motstand-kolfilm-0-25w-10kohm-10k/", r.URL)
	assert.Equal(t, "motstand-kolfilm-0-25w-10kohm-10k", r.PartNumber)
	assert.Equal(t, "https://cdn.electrokit.com/img/40810410.jpg", r.ImageURL)
	assert.True(t, r.Price.Equal(decimal.RequireFromString("1.95")), r.Price.String())
	assert.True(t, r.PriceKnown)
	assert.Equal(t, "SEK", r.Currency)
	assert.True(t, r.InStock)
	require.NotNil(t, r.StockQuantity)
	assert.Equal(t, 1250, *r.StockQuantity)
	assert.Equal(t, "resistor", r.Category)

	r = recs[1]
	assert.Equal(t, "kondensator-100nf", r.PartNumber)
	assert.False(t, r.PriceKnown)
	assert.True(t, r.Price.IsZero())
	assert.Equal(t, "SEK", r.Currency)
	assert.False(t, r.InStock)
	assert.Equal(t, "capacitor", r.Category)
}

func TestParseListing_EmptyStates(t *testing.T) {
	p := electrokit(t)

	recs, err := p.ParseListing(`<div class="no-results">Inga produkter hittades</div>`, "https://www.electrokit.com/")
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = p.ParseListing(`<div class="product-grid"></div>`, "https://www.electrokit.com/")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseListing_SKUIsMPN(t *testing.T) {
	got, err := ParseProfiles([]byte(`
vendors:
  - id: mouser
    base_url: https://mouser.example
    search_url: https://mouser.example/?q={query}
    sku_is_mpn: true
    listing: {item: .hit, name: .title, link: a, sku: .sku}
`))
	require.NoError(t, err)
	p := &got[0]
	markup := `<ul>
		<li class="hit"><a href="/p/1"><span class="title">NE555 timer</span></a><span class="sku">SKU: NE555P</span></li>
		<li class="hit"><a href="/p/lm358-op-amp"><span class="title">LM358</span></a></li>
	</ul>`

	recs, err := p.ParseListing(markup, "https://mouser.example/?q=ic")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "NE555P", recs[0].PartNumber)
	assert.Equal(t, "NE555P", recs[0].MPN)
	assert.Equal(t, "lm358-op-amp", recs[1].PartNumber)
	assert.Empty(t, recs[1].MPN, "url slugs never stand for a manufacturer number")
}

func TestParseListing_UnrecognisedMarkup(t *testing.T) {
	p := electrokit(t)
	_, err := p.ParseListing(`<html><body><h1>Access denied</h1></body></html>`, "https://www.electrokit.com/")
	require.Error(t, err)
	assert.Equal(t, domain.KindParsing, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestParseDetail(t *testing.T) {
	p := electrokit(t)
	pageURL := "https://www.electrokit.com/produkt/motstand-kolfilm-0-25w-10kohm-10k/"

	r, err := p.ParseDetail(fixture(t, "detail.html"), pageURL)
	require.NoError(t, err)

	assert.Equal(t, "40810410", r.PartNumber)
	assert.Equal(t, "Motstånd kolfilm 0.25W 10kohm (10k)", r.Name)
	assert.Equal(t, "Kolfilmsmotstånd 0,25 W, 5%.", r.Description)
	assert.Equal(t, "Yageo", r.Manufacturer)
	assert.Equal(t, "CFR-25JB-52-10K", r.MPN)
	assert.Equal(t, "resistor", r.Category)
	assert.Equal(t, pageURL, r.URL)
	assert.Equal(t, "https://www.electrokit.com/img/40810410.jpg", r.ImageURL)
	assert.Equal(t, "https://www.electrokit.com/media/datasheet/40810410.pdf", r.DatasheetURL)

	assert.True(t, r.Price.Equal(decimal.RequireFromString("1.95")))
	assert.Equal(t, "SEK", r.Currency)
	require.Len(t, r.BreakPoints, 2)
	assert.Equal(t, 10, r.BreakPoints[0].Quantity)
	assert.True(t, r.BreakPoints[0].Price.Equal(decimal.RequireFromString("1.60")))
	assert.Equal(t, 100, r.BreakPoints[1].Quantity)

	assert.True(t, r.InStock)
	require.NotNil(t, r.StockQuantity)
	assert.Equal(t, 1250, *r.StockQuantity)
	require.NotNil(t, r.DeliveryDays)
	assert.Equal(t, 2, *r.DeliveryDays)

	assert.InDelta(t, 10000.0, r.Specifications["Resistans"], 1e-9)
	assert.Equal(t, omega, r.Specifications["Resistans_unit"])
	assert.InDelta(t, 0.25, r.Specifications["Effekt"], 1e-9)
	assert.Equal(t, true, r.Specifications["RoHS"])
	assert.Equal(t, "Motstånd kolfilm 0.25W 10kohm (10k) | Electrokit", r.Specifications["page_title"])
	assert.Equal(t, "Kolfilmsmotstånd 10 kohm 0,25 W", r.Specifications["meta_description"])
}

func TestParseDetail_RequiresTitleAndSKU(t *testing.T) {
	p := electrokit(t)

	_, err := p.ParseDetail(`<div class="product"><span class="sku">123</span></div>`, "https://www.electrokit.com/p/")
	assert.Equal(t, domain.KindParsing, domain.KindOf(err))

	_, err = p.ParseDetail(`<div class="product"><h1 class="product_title">Thing</h1></div>`, "https://www.electrokit.com/p/")
	assert.Equal(t, domain.KindParsing, domain.KindOf(err))
}

func TestParseDetail_SKUIsMPN(t *testing.T) {
	p := electrokit(t)
	markup := `<div class="product"><h1 class="product_title">NE555 timer</h1><span class="sku">Art.nr: NE555P</span></div>`

	r, err := p.ParseDetail(markup, "https://www.electrokit.com/produkt/ne555/")
	require.NoError(t, err)
	assert.Empty(t, r.MPN, "shop SKU is not a manufacturer number by default")

	p.SKUIsMPN = true
	r, err = p.ParseDetail(markup, "https://www.electrokit.com/produkt/ne555/")
	require.NoError(t, err)
	assert.Equal(t, "NE555P", r.PartNumber)
	assert.Equal(t, "NE555P", r.MPN)
}

func TestParseDetail_PriceFallsBackToFirstBreak(t *testing.T) {
	p := electrokit(t)
	markup := `<div class="product">
		<h1 class="product_title">LED 5mm röd</h1><span class="sku">41013102</span>
		<p class="price">Ring för pris</p>
		<table class="quantity-break-table"><tr><th>Antal</th><th>Pris</th></tr>
		<tr><td>1</td><td>2,50 kr</td></tr><tr><td>50</td><td>1,90 kr</td></tr></table>
	</div>`

	r, err := p.ParseDetail(markup, "https://www.electrokit.com/produkt/led-5mm-rod/")
	require.NoError(t, err)
	assert.True(t, r.PriceKnown)
	assert.True(t, r.Price.Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, "led", r.Category)
	assert.Empty(t, r.DatasheetURL)
}

func TestProfiles(t *testing.T) {
	p := electrokit(t)
	assert.Equal(t, "https://www.electrokit.com/en/search/?s=10k+resistor", p.SearchPageURL(" 10k resistor "))
	assert.Equal(t, ".product-grid, .no-results", p.ResultsSelector())
	assert.Equal(t, ".product", p.DetailSelector())
	assert.Equal(t, 2.0, p.RequestsPerSecond)

	_, err := ParseProfiles([]byte(`
vendors:
  - id: a
    base_url: https://a.example
    search_url: https://a.example/?q={query}
    listing: {item: .x}
  - id: a
    base_url: https://a.example
    search_url: https://a.example/?q={query}
    listing: {item: .x}
`))
	assert.ErrorContains(t, err, "duplicate vendor id")

	_, err = ParseProfiles([]byte(`
vendors:
  - id: b
    base_url: https://b.example
    search_url: https://b.example/search
    listing: {item: .x}
`))
	assert.ErrorContains(t, err, "{query}")

	got, err := ParseProfiles([]byte(`
vendors:
  - id: c
    base_url: https://c.example
    search_url: https://c.example/?q={query}
    listing: {item: .x}
`))
	require.NoError(t, err)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, SessionBrowser, got[0].Session)
	assert.Equal(t, 1.0, got[0].RequestsPerSecond)
	assert.Equal(t, 1, got[0].Burst)
}

func TestLoadProfiles_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vendors:
  - id: static-shop
    base_url: https://shop.example
    search_url: https://shop.example/s?q={query}
    session: static
    currency: EUR
    listing: {item: .product}
`), 0o600))

	got, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SessionStatic, got[0].Session)
	assert.Equal(t, "EUR", got[0].Currency)

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
