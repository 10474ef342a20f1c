package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"componentfinder/internal/domain"
)

// ParseDetail reads a product page into a full record. Title and SKU are
// required; every other field is best effort and left empty when missing.
func (p *Profile) ParseDetail(markup, pageURL string) (domain.ComponentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return domain.ComponentRecord{}, domain.ParsingError("read detail", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return domain.ComponentRecord{}, domain.ParsingError("read detail", fmt.Errorf("page url: %w", err))
	}

	root := doc.Selection
	if p.Detail.Root != "" {
		if r := doc.Find(p.Detail.Root).First(); r.Length() > 0 {
			root = r
		}
	}
	sel := p.Detail

	title := CleanText(find(root, sel.Title).Text())
	if title == "" {
		return domain.ComponentRecord{}, domain.ParsingError("read detail", errors.New("product title missing"))
	}
	sku := cleanSKU(find(root, sel.SKU).Text())
	if sku == "" {
		return domain.ComponentRecord{}, domain.ParsingError("read detail", errors.New("product sku missing"))
	}

	rawSpecs := p.specTable(root)
	rec := domain.ComponentRecord{
		PartNumber:  sku,
		Vendor:      p.ID,
		Name:        title,
		Description: CleanText(find(root, sel.Description).Text()),
		URL:         base.String(),
		ImageURL:    imageSource(base, find(root, sel.Image)),
	}

	rec.Manufacturer = CleanText(find(root, sel.Manufacturer).Text())
	if rec.Manufacturer == "" {
		rec.Manufacturer = lookup(rawSpecs, p.ManufacturerKeys)
	}
	rec.MPN = lookup(rawSpecs, p.MPNKeys)
	if rec.MPN == "" && p.SKUIsMPN {
		rec.MPN = sku
	}

	var crumbs []string
	if sel.Breadcrumb != "" {
		doc.Find(sel.Breadcrumb).Each(func(_ int, s *goquery.Selection) {
			crumbs = append(crumbs, CleanText(s.Text()))
		})
	}
	// The deepest breadcrumb is the most specific category.
	labels := []string{lookup(rawSpecs, p.CategoryKeys)}
	for i := len(crumbs) - 1; i >= 0; i-- {
		labels = append(labels, crumbs[i])
	}
	rec.Category = p.Categorize(append(labels, title)...)

	rec.Price, rec.Currency, rec.PriceKnown = ParsePrice(find(root, sel.Price).Text(), p.Currency)
	rec.BreakPoints = p.breakPoints(root)
	if !rec.PriceKnown && len(rec.BreakPoints) > 0 {
		rec.Price, rec.PriceKnown = rec.BreakPoints[0].Price, true
	}

	stockText := find(root, sel.Stock).Text()
	rec.InStock, rec.StockQuantity = p.ParseStock(stockText)
	rec.DeliveryDays = p.ParseDeliveryDays(find(root, sel.Delivery).Text())
	if rec.DeliveryDays == nil {
		rec.DeliveryDays = p.ParseDeliveryDays(stockText)
	}

	if href, ok := find(root, sel.Datasheet).Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			rec.DatasheetURL = base.ResolveReference(ref).String()
		}
	}

	rec.Specifications = NormalizeSpecifications(rawSpecs)
	if t := CleanText(doc.Find("title").First().Text()); t != "" {
		rec.Specifications["page_title"] = t
	}
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && CleanText(d) != "" {
		rec.Specifications["meta_description"] = CleanText(d)
	}
	return rec, nil
}

func (p *Profile) specTable(root *goquery.Selection) map[string]string {
	raw := map[string]string{}
	if p.Detail.SpecRows == "" {
		return raw
	}
	root.Find(p.Detail.SpecRows).Each(func(_ int, row *goquery.Selection) {
		label := CleanText(row.Find(p.Detail.SpecLabel).First().Text())
		value := CleanText(row.Find(p.Detail.SpecValue).First().Text())
		label = strings.TrimSuffix(label, ":")
		if label != "" && value != "" {
			raw[label] = value
		}
	})
	return raw
}

// breakPoints reads "<quantity> | <unit price>" rows.
func (p *Profile) breakPoints(root *goquery.Selection) []domain.BreakPoint {
	if p.Detail.BreakRows == "" {
		return nil
	}
	var out []domain.BreakPoint
	root.Find(p.Detail.BreakRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		qty, ok := leadingInt(cells.Eq(0).Text())
		if !ok || qty <= 0 {
			return
		}
		price, _, known := ParsePrice(cells.Eq(1).Text(), p.Currency)
		if !known {
			return
		}
		out = append(out, domain.BreakPoint{Quantity: qty, Price: price})
	})
	return sortBreakPoints(out)
}

func leadingInt(s string) (int, bool) {
	s = CleanText(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

// cleanSKU strips labels such as "Art.nr:" or "SKU:".
func cleanSKU(s string) string {
	s = CleanText(s)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	return s
}

// lookup returns the first spec value whose label matches one of keys,
// ignoring case.
func lookup(specs map[string]string, keys []string) string {
	for _, k := range keys {
		for label, value := range specs {
			if strings.EqualFold(label, k) {
				return value
			}
		}
	}
	return ""
}
