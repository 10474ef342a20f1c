// Package extract turns vendor markup into component records. Selectors and
// locale patterns come from a vendor Profile; nothing here touches the network.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"componentfinder/internal/domain"
)

// ParseListing reads a search results page into partial records, in page
// order. An explicit empty state or an empty result grid gives no records and
// no error; markup that shows neither is a PARSING error.
func (p *Profile) ParseListing(markup, pageURL string) ([]domain.ComponentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, domain.ParsingError("read listing", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, domain.ParsingError("read listing", fmt.Errorf("page url: %w", err))
	}

	items := doc.Find(p.Listing.Item)
	if items.Length() == 0 {
		if p.Listing.NoResults != "" && doc.Find(p.Listing.NoResults).Length() > 0 {
			return nil, nil
		}
		if p.Listing.Container != "" && doc.Find(p.Listing.Container).Length() > 0 {
			return nil, nil
		}
		return nil, domain.ParsingError("read listing", errors.New("no result grid or empty state on page"))
	}

	var out []domain.ComponentRecord
	items.Each(func(_ int, s *goquery.Selection) {
		if rec, ok := p.listingRecord(s, base); ok {
			out = append(out, rec)
		}
	})
	return out, nil
}

func (p *Profile) listingRecord(s *goquery.Selection, base *url.URL) (domain.ComponentRecord, bool) {
	sel := p.Listing
	name := CleanText(find(s, sel.Name).Text())
	href, _ := find(s, sel.Link).Attr("href")
	if name == "" && href == "" {
		return domain.ComponentRecord{}, false
	}
	link, ok := resolve(base, href)
	if !ok {
		return domain.ComponentRecord{}, false
	}

	rec := domain.ComponentRecord{
		Vendor:   p.ID,
		Name:     name,
		URL:      link,
		ImageURL: imageSource(base, find(s, sel.Image)),
	}
	rec.PartNumber = cleanSKU(find(s, sel.SKU).Text())
	if rec.PartNumber != "" && p.SKUIsMPN {
		rec.MPN = rec.PartNumber
	}
	if rec.PartNumber == "" {
		rec.PartNumber = PartNumberFromURL(link)
	}
	rec.Price, rec.Currency, rec.PriceKnown = ParsePrice(find(s, sel.Price).Text(), p.Currency)
	rec.InStock, rec.StockQuantity = p.ParseStock(find(s, sel.Stock).Text())
	rec.Category = p.Categorize(CleanText(find(s, sel.Category).Text()), name)
	return rec, true
}

// find scopes selector to s; an empty selector selects nothing.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s.Slice(0, 0)
	}
	return s.Find(selector).First()
}

// resolve makes href absolute against base and rejects links that leave the
// vendor's registrable domain, such as ads and affiliate redirects.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return base.String(), true
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if !sameSite(base.Hostname(), abs.Hostname()) {
		return "", false
	}
	return abs.String(), true
}

func sameSite(a, b string) bool {
	if a == "" || b == "" || strings.EqualFold(a, b) {
		return true
	}
	ra, errA := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(a))
	rb, errB := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(b))
	if errA != nil || errB != nil {
		return false
	}
	return ra == rb
}

func imageSource(base *url.URL, img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			if abs, ok := resolve(base, v); ok {
				return abs
			}
			// CDN images are allowed to live on another domain.
			if ref, err := url.Parse(v); err == nil {
				return base.ResolveReference(ref).String()
			}
		}
	}
	return ""
}

// PartNumberFromURL derives a vendor part number from the last path segment
// of a product URL, for listings that show no SKU.
func PartNumberFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	last = strings.TrimSuffix(strings.TrimSuffix(last, ".html"), ".htm")
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}
	return last
}
