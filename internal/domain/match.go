package domain

import (
	"sort"
	"strings"
	"time"
)

// Matches reports whether every whitespace-separated term of query occurs in
// the name, description, part number or manufacturer, ignoring case. An empty
// category matches all categories.
func (m MergedComponent) Matches(query, category string) bool {
	if category != "" && !strings.EqualFold(m.Category, category) {
		return false
	}
	haystack := strings.ToLower(strings.Join([]string{m.Name, m.Description, m.PartNumber, m.Manufacturer}, "\n"))
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// SortVendors orders results by vendor id so every store returns them alike.
func SortVendors(vs []VendorResult) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].VendorID < vs[j].VendorID })
}

// Supersedes reports whether a write stamped next may replace one stamped
// prev. Equal stamps replace so repeated upserts stay idempotent.
func Supersedes(next, prev time.Time) bool {
	return !next.Before(prev)
}
