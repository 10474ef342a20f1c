package search

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"componentfinder/internal/domain"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://componentfinder.local/components"))

// DedupKey identifies the logical part behind a vendor record: the
// normalised manufacturer part number, else the normalised name and category.
// Vendor part numbers are shop specific and never part of the key; profiles
// whose SKU is the manufacturer number fill MPN at extraction. The name
// fallback can merge different parts that share a name.
func DedupKey(r domain.ComponentRecord) string {
	if k := normalizePart(r.MPN); k != "" {
		return "part:" + k
	}
	name := strings.Join(strings.Fields(strings.ToLower(r.Name)), " ")
	return "name:" + name + "|" + strings.ToLower(r.Category)
}

// ComponentID is the stable id of the merged component for key.
func ComponentID(key string) string {
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func normalizePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Merge groups records into merged components, in order of first appearance.
// Each vendor contributes at most one result per component; its first record
// wins. Descriptive fields come from the first record and are filled from
// later ones when empty.
func Merge(records []domain.ComponentRecord) []domain.MergedComponent {
	var out []domain.MergedComponent
	index := map[string]int{}
	for _, r := range records {
		key := DedupKey(r)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, newMerged(key, r))
			continue
		}
		m := &out[i]
		if _, dup := m.Vendor(r.Vendor); dup {
			continue
		}
		absorb(m, r)
	}
	for i := range out {
		domain.SortVendors(out[i].Vendors)
	}
	return out
}

func newMerged(key string, r domain.ComponentRecord) domain.MergedComponent {
	m := domain.MergedComponent{
		ID:          ComponentID(key),
		Key:         key,
		PartNumber:  r.MPN,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
	}
	if m.PartNumber == "" {
		m.PartNumber = r.PartNumber
	}
	absorb(&m, r)
	return m
}

func absorb(m *domain.MergedComponent, r domain.ComponentRecord) {
	fill(&m.Name, r.Name)
	fill(&m.Description, r.Description)
	fill(&m.Manufacturer, r.Manufacturer)
	fill(&m.ImageURL, r.ImageURL)
	fill(&m.DatasheetURL, r.DatasheetURL)
	if m.Category == "" || m.Category == domain.DefaultCategory {
		if r.Category != "" {
			m.Category = r.Category
		}
	}
	for k, v := range r.Specifications {
		if m.Specifications == nil {
			m.Specifications = map[string]any{}
		}
		if _, ok := m.Specifications[k]; !ok {
			m.Specifications[k] = v
		}
	}
	m.Vendors = append(m.Vendors, r.VendorResult())
	if r.LastUpdated.After(m.LastUpdated) {
		m.LastUpdated = r.LastUpdated
	}
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
