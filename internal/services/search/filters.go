package search

import (
	"strings"

	"componentfinder/internal/domain"
)

// ApplyFilters narrows each component's vendor results and drops components
// left without any. Category is matched per component, case-insensitively.
// The input is not modified, and applying the same filters twice gives the
// same result as applying them once.
func ApplyFilters(in []domain.MergedComponent, category string, f domain.Filters, limit int) []domain.MergedComponent {
	vendors := map[string]bool{}
	for _, v := range f.Vendors {
		vendors[strings.ToLower(strings.TrimSpace(v))] = true
	}

	out := make([]domain.MergedComponent, 0, len(in))
	for _, c := range in {
		if category != "" && !strings.EqualFold(c.Category, category) {
			continue
		}
		kept := make([]domain.VendorResult, 0, len(c.Vendors))
		for _, r := range c.Vendors {
			if keep(r, f, vendors) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			continue
		}
		c.Vendors = kept
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func keep(r domain.VendorResult, f domain.Filters, vendors map[string]bool) bool {
	if f.InStock && !r.InStock {
		return false
	}
	if len(vendors) > 0 && !vendors[strings.ToLower(r.VendorID)] {
		return false
	}
	if pr := f.PriceRange; pr != nil && (pr.Min != nil || pr.Max != nil) {
		if !r.PriceKnown {
			return false
		}
		if pr.Min != nil && r.Price.LessThan(*pr.Min) {
			return false
		}
		if pr.Max != nil && r.Price.GreaterThan(*pr.Max) {
			return false
		}
	}
	return true
}
