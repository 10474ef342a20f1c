package extract

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtin embed.FS

// Session modes a profile can ask for.
const (
	SessionBrowser = "browser"
	SessionStatic  = "static"
)

// ListingSelectors locate fields on a search results page.
type ListingSelectors struct {
	Container string `yaml:"container"`
	NoResults string `yaml:"no_results"`
	Item      string `yaml:"item"`
	Name      string `yaml:"name"`
	Link      string `yaml:"link"`
	Image     string `yaml:"image"`
	Price     string `yaml:"price"`
	Stock     string `yaml:"stock"`
	SKU       string `yaml:"sku"`
	Category  string `yaml:"category"`
}

// DetailSelectors locate fields on a product page.
type DetailSelectors struct {
	Root         string `yaml:"root"`
	Title        string `yaml:"title"`
	SKU          string `yaml:"sku"`
	Description  string `yaml:"description"`
	Manufacturer string `yaml:"manufacturer"`
	Price        string `yaml:"price"`
	Stock        string `yaml:"stock"`
	Delivery     string `yaml:"delivery"`
	SpecRows     string `yaml:"spec_rows"`
	SpecLabel    string `yaml:"spec_label"`
	SpecValue    string `yaml:"spec_value"`
	Datasheet    string `yaml:"datasheet"`
	Image        string `yaml:"image"`
	BreakRows    string `yaml:"break_rows"`
	Breadcrumb   string `yaml:"breadcrumb"`
}

// StockPatterns are locale specific regular expressions over stock text.
type StockPatterns struct {
	InStock    string `yaml:"in_stock"`
	OutOfStock string `yaml:"out_of_stock"`
	Quantity   string `yaml:"quantity"`
}

// Profile describes how to query and read one vendor's site.
type Profile struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	BaseURL           string            `yaml:"base_url"`
	SearchURL         string            `yaml:"search_url"`
	Currency          string            `yaml:"currency"`
	Session           string            `yaml:"session"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
	// SKUIsMPN marks vendors whose shown SKU is the manufacturer part number.
	SKUIsMPN          bool              `yaml:"sku_is_mpn"`
	Listing           ListingSelectors  `yaml:"listing"`
	Detail            DetailSelectors   `yaml:"detail"`
	Stock             StockPatterns     `yaml:"stock"`
	Delivery          string            `yaml:"delivery"`
	ManufacturerKeys  []string          `yaml:"manufacturer_keys"`
	MPNKeys           []string          `yaml:"mpn_keys"`
	CategoryKeys      []string          `yaml:"category_keys"`
	Categories        map[string]string `yaml:"categories"`

	inStock    *regexp.Regexp
	outOfStock *regexp.Regexp
	quantity   *regexp.Regexp
	delivery   *regexp.Regexp
	categories map[string]string
}

type profileFile struct {
	Vendors []Profile `yaml:"vendors"`
}

// DefaultProfiles returns the profiles compiled into the binary.
func DefaultProfiles() ([]Profile, error) {
	data, err := builtin.ReadFile("profiles/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("read builtin profiles: %w", err)
	}
	return ParseProfiles(data)
}

// LoadProfiles reads profiles from path, or the built-in set when path is empty.
func LoadProfiles(path string) ([]Profile, error) {
	if path == "" {
		return DefaultProfiles()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor profiles %s: %w", path, err)
	}
	profiles, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("vendor profiles %s: %w", path, err)
	}
	return profiles, nil
}

// ParseProfiles decodes a profile document, applies defaults and compiles
// the patterns.
func ParseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}
	seen := make(map[string]bool, len(f.Vendors))
	for i := range f.Vendors {
		p := &f.Vendors[i]
		if err := p.Prepare(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate vendor id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return f.Vendors, nil
}

// Prepare validates p, fills defaults and compiles its patterns. Profiles
// built in code must be prepared before use.
func (p *Profile) Prepare() error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("vendor profile without id")
	}
	if !strings.Contains(p.SearchURL, "{query}") {
		return fmt.Errorf("vendor %s: search_url must contain {query}", p.ID)
	}
	if _, err := url.Parse(p.BaseURL); err != nil || p.BaseURL == "" {
		return fmt.Errorf("vendor %s: invalid base_url %q", p.ID, p.BaseURL)
	}
	if p.Listing.Item == "" {
		return fmt.Errorf("vendor %s: listing.item selector is required", p.ID)
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Currency == "" {
		p.Currency = "SEK"
	}
	if p.Session == "" {
		p.Session = SessionBrowser
	}
	if p.Session != SessionBrowser && p.Session != SessionStatic {
		return fmt.Errorf("vendor %s: unknown session %q", p.ID, p.Session)
	}
	if p.RequestsPerSecond <= 0 {
		p.RequestsPerSecond = 1
	}
	if p.Burst <= 0 {
		p.Burst = max(1, int(p.RequestsPerSecond))
	}
	if p.Detail.SpecLabel == "" {
		p.Detail.SpecLabel = "th"
	}
	if p.Detail.SpecValue == "" {
		p.Detail.SpecValue = "td"
	}

	var err error
	if p.inStock, err = compileOptional(p.Stock.InStock); err != nil {
		return fmt.Errorf("vendor %s: stock.in_stock: %w", p.ID, err)
	}
	if p.outOfStock, err = compileOptional(p.Stock.OutOfStock); err != nil {
		return fmt.Errorf("vendor %s: stock.out_of_stock: %w", p.ID, err)
	}
	if p.quantity, err = compileOptional(p.Stock.Quantity); err != nil {
		return fmt.Errorf("vendor %s: stock.quantity: %w", p.ID, err)
	}
	if p.delivery, err = compileOptional(p.Delivery); err != nil {
		return fmt.Errorf("vendor %s: delivery: %w", p.ID, err)
	}
	p.categories = make(map[string]string, len(p.Categories))
	for label, cat := range p.Categories {
		p.categories[strings.ToLower(strings.TrimSpace(label))] = cat
	}
	return nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

// SearchPageURL renders the search URL for query.
func (p *Profile) SearchPageURL(query string) string {
	return strings.ReplaceAll(p.SearchURL, "{query}", url.QueryEscape(strings.TrimSpace(query)))
}

// ResultsSelector matches either a result grid or an explicit empty state.
func (p *Profile) ResultsSelector() string {
	var parts []string
	for _, s := range []string{p.Listing.Container, p.Listing.NoResults} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return p.Listing.Item
	}
	return strings.Join(parts, ", ")
}

// DetailSelector is what a product page must show before it is read.
func (p *Profile) DetailSelector() string {
	if p.Detail.Root != "" {
		return p.Detail.Root
	}
	return p.Detail.Title
}
