package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core domain models. Storage and HTTP adapters map these to their own shapes;
// keep them free of persistence concerns.

// DefaultCurrency is used when neither the page nor the vendor profile names one.
const DefaultCurrency = "SEK"

// DefaultCategory is the category of anything the lookup tables cannot place.
const DefaultCategory = "other"

// BreakPoint is a quantity threshold at which the unit price changes.
type BreakPoint struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ComponentRecord is a single vendor's view of a part, as produced by extraction.
type ComponentRecord struct {
	PartNumber     string          `json:"part_number"`
	Vendor         string          `json:"vendor"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Manufacturer   string          `json:"manufacturer,omitempty"`
	MPN            string          `json:"mpn,omitempty"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	PriceKnown     bool            `json:"price_known"`
	Currency       string          `json:"currency"`
	InStock        bool            `json:"in_stock"`
	StockQuantity  *int            `json:"stock_quantity,omitempty"`
	DeliveryDays   *int            `json:"delivery_days,omitempty"`
	BreakPoints    []BreakPoint    `json:"break_points,omitempty"`
	URL            string          `json:"url"`
	ImageURL       string          `json:"image_url,omitempty"`
	DatasheetURL   string          `json:"datasheet_url,omitempty"`
	Specifications map[string]any  `json:"specifications,omitempty"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// VendorResult projects the commercial part of a record for one vendor.
func (r ComponentRecord) VendorResult() VendorResult {
	return VendorResult{
		VendorID:      r.Vendor,
		PartNumber:    r.PartNumber,
		Price:         r.Price,
		PriceKnown:    r.PriceKnown,
		Currency:      r.Currency,
		InStock:       r.InStock,
		StockQuantity: r.StockQuantity,
		DeliveryDays:  r.DeliveryDays,
		BreakPoints:   r.BreakPoints,
		URL:           r.URL,
		LastUpdated:   r.LastUpdated,
	}
}

// VendorResult is one vendor's offer for a merged component. It is never
// persisted without its parent component.
type VendorResult struct {
	VendorID      string          `json:"vendor_id"`
	PartNumber    string          `json:"part_number"`
	Price         decimal.Decimal `json:"price"`
	PriceKnown    bool            `json:"price_known"`
	Currency      string          `json:"currency"`
	InStock       bool            `json:"in_stock"`
	StockQuantity *int            `json:"stock_quantity,omitempty"`
	DeliveryDays  *int            `json:"delivery_days,omitempty"`
	BreakPoints   []BreakPoint    `json:"break_points,omitempty"`
	URL           string          `json:"url"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// MergedComponent is the deduplicated logical part. Vendors holds at most one
// entry per vendor.
type MergedComponent struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	PartNumber     string         `json:"part_number"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Manufacturer   string         `json:"manufacturer,omitempty"`
	Category       string         `json:"category"`
	ImageURL       string         `json:"image_url,omitempty"`
	DatasheetURL   string         `json:"datasheet_url,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
	Vendors        []VendorResult `json:"vendors"`
	LastUpdated    time.Time      `json:"last_updated"`
}

// Vendor returns the result reported by vendorID, if any.
func (m MergedComponent) Vendor(vendorID string) (VendorResult, bool) {
	for _, v := range m.Vendors {
		if v.VendorID == vendorID {
			return v, true
		}
	}
	return VendorResult{}, false
}

// Primary picks the result to show when a consumer needs exactly one price:
// the cheapest in-stock offer, else the cheapest overall. Offers with a known
// price beat unparseable ones at the same level.
func (m MergedComponent) Primary() (VendorResult, bool) {
	if len(m.Vendors) == 0 {
		return VendorResult{}, false
	}
	best := -1
	for i, v := range m.Vendors {
		if best < 0 || cheaper(v, m.Vendors[best]) {
			best = i
		}
	}
	return m.Vendors[best], true
}

func cheaper(a, b VendorResult) bool {
	if a.InStock != b.InStock {
		return a.InStock
	}
	if a.PriceKnown != b.PriceKnown {
		return a.PriceKnown
	}
	return a.Price.LessThan(b.Price)
}

// StockInfo is the answer to a stock check.
type StockInfo struct {
	InStock      bool      `json:"in_stock"`
	Quantity     *int      `json:"quantity,omitempty"`
	DeliveryDays *int      `json:"delivery_days,omitempty"`
	LastChecked  time.Time `json:"last_checked"`
}

// SearchOptions narrows a single vendor search.
type SearchOptions struct {
	Limit    int
	Category string
}

// PriceRange bounds vendor prices; nil ends are open.
type PriceRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// Filters are applied after fetching, per vendor result.
type Filters struct {
	InStock    bool
	PriceRange *PriceRange
	Vendors    []string
}

// Query is an orchestrated search request.
type Query struct {
	Text     string
	Category string
	Limit    int
	Filters  Filters
}
