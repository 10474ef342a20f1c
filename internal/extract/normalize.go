package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"componentfinder/internal/domain"
)

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	priceNumber = regexp.MustCompile(`\d(?:[\d.,\s\x{00A0}\x{202F}]*\d)?`)
	kronor      = regexp.MustCompile(`(?i)(?:^|[^a-z])kr(?:[^a-z]|$)|:-`)
	// number, optional SI prefix, optional unit; applied after NFKC so the
	// ohm sign and micro sign arrive as Greek omega and mu.
	specQuantity = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(p|n|\x{03BC}|u|m|k|M)?(Hz|Ah|ohm|\x{03A9}|F|H|V|A|W|m|s|g)?$`)
)

const (
	omega = "\u03a9"
	mu    = "\u03bc"
)

var siPrefixes = map[string]decimal.Decimal{
	"p": decimal.New(1, -12),
	"n": decimal.New(1, -9),
	mu:  decimal.New(1, -6),
	"u": decimal.New(1, -6),
	"m": decimal.New(1, -3),
	"k": decimal.New(1, 3),
	"M": decimal.New(1, 6),
}

// CleanText collapses whitespace runs and trims.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// ParsePrice reads the first amount in text. Spaces and the separator that is
// not last are thousands separators; a lone comma is a decimal comma. ok is
// false when no amount could be read, in which case price is zero.
func ParsePrice(text, defaultCurrency string) (price decimal.Decimal, currency string, ok bool) {
	currency = DetectCurrency(text, defaultCurrency)
	m := priceNumber.FindString(text)
	if m == "" {
		return decimal.Zero, currency, false
	}
	d, err := decimal.NewFromString(normalizeNumber(m))
	if err != nil || d.IsNegative() {
		return decimal.Zero, currency, false
	}
	return d, currency, true
}

func normalizeNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// DetectCurrency recognises the common currency markers on Nordic and EU shops.
func DetectCurrency(text, fallback string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "SEK"):
		return "SEK"
	case strings.Contains(upper, "NOK"):
		return "NOK"
	case strings.Contains(upper, "DKK"):
		return "DKK"
	case strings.Contains(text, "€") || strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(text, "$") || strings.Contains(upper, "USD"):
		return "USD"
	case kronor.MatchString(text):
		if fallback == "NOK" || fallback == "DKK" {
			return fallback
		}
		return "SEK"
	}
	if fallback == "" {
		return domain.DefaultCurrency
	}
	return fallback
}

// Quantity is a specification value in SI base units.
type Quantity struct {
	Value float64
	Unit  string
}

// ParseQuantity reads "<number>[SI prefix][unit]", e.g. "10 kΩ" or "4,7µF".
func ParseQuantity(raw string) (Quantity, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	m := specQuantity.FindStringSubmatch(s)
	if m == nil {
		return Quantity{}, false
	}
	num, prefix, unit := m[1], m[2], m[3]
	// "5 m" is five metres, not five milli-nothing.
	if prefix == "m" && unit == "" {
		prefix, unit = "", "m"
	}
	if unit == "ohm" {
		unit = omega
	}
	d, err := decimal.NewFromString(strings.Replace(num, ",", ".", 1))
	if err != nil {
		return Quantity{}, false
	}
	if mult, ok := siPrefixes[prefix]; ok {
		d = d.Mul(mult)
	}
	v, _ := d.Float64()
	return Quantity{Value: v, Unit: unit}, true
}

// ParseBool accepts yes/no/true/false in any case.
func ParseBool(raw string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true":
		return true, true
	case "no", "false":
		return false, true
	}
	return false, false
}

// NormalizeSpecifications converts raw label/value pairs. Quantities become
// base-unit numbers with a "<label>_unit" companion, booleans become bools,
// everything else stays as cleaned text. Empty values are dropped.
func NormalizeSpecifications(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		key = CleanText(key)
		value = CleanText(value)
		if key == "" || value == "" {
			continue
		}
		if q, ok := ParseQuantity(value); ok {
			out[key] = q.Value
			if q.Unit != "" {
				out[key+"_unit"] = q.Unit
			}
			continue
		}
		if b, ok := ParseBool(value); ok {
			out[key] = b
			continue
		}
		out[key] = value
	}
	return out
}

// ParseStock reads availability and an optional count from stock text.
// Out-of-stock wording wins over in-stock wording.
func (p *Profile) ParseStock(text string) (inStock bool, quantity *int) {
	text = CleanText(text)
	if text == "" {
		return false, nil
	}
	if p.quantity != nil {
		if m := p.quantity.FindStringSubmatch(text); len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				quantity = &n
			}
		}
	}
	switch {
	case p.outOfStock != nil && p.outOfStock.MatchString(text):
		return false, quantity
	case quantity != nil:
		return *quantity > 0, quantity
	case p.inStock != nil && p.inStock.MatchString(text):
		return true, nil
	}
	return false, nil
}

// ParseDeliveryDays reads "3 dagar", "2-4 days" or "1 week". Ranges are
// averaged and rounded up; weeks count as seven days.
func (p *Profile) ParseDeliveryDays(text string) *int {
	if p.delivery == nil {
		return nil
	}
	m := p.delivery.FindStringSubmatch(CleanText(text))
	if len(m) < 2 {
		return nil
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	days := lo
	if len(m) > 2 && m[2] != "" {
		if hi, err := strconv.Atoi(m[2]); err == nil {
			days = (lo + hi + 1) / 2
		}
	}
	if len(m) > 3 {
		unit := strings.ToLower(m[3])
		if strings.HasPrefix(unit, "week") || strings.HasPrefix(unit, "veck") {
			days *= 7
		}
	}
	return &days
}

// Categorize maps the first label that matches the profile's category table,
// first as a whole label, then word by word. Unknown labels give "other".
func (p *Profile) Categorize(labels ...string) string {
	for _, label := range labels {
		if cat, ok := p.categories[strings.ToLower(CleanText(label))]; ok {
			return cat
		}
	}
	for _, label := range labels {
		words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if cat, ok := p.categories[w]; ok {
				return cat
			}
		}
	}
	return domain.DefaultCategory
}

// sortBreakPoints orders by quantity and drops repeated quantities so the
// sequence is strictly increasing.
func sortBreakPoints(in []domain.BreakPoint) []domain.BreakPoint {
	if len(in) == 0 {
		return nil
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Quantity < in[j].Quantity })
	out := in[:1]
	for _, bp := range in[1:] {
		if bp.Quantity > out[len(out)-1].Quantity {
			out = append(out, bp)
		}
	}
	return out
}
