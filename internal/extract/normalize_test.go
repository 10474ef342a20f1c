package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"componentfinder/internal/domain"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		currency string
		known    bool
	}{
		{"199 kr", "199", "SEK", true},
		{"1 234,50 kr", "1234.50", "SEK", true},
		{"1 234,50 kr", "1234.50", "SEK", true},
		{"12,90:-", "12.90", "SEK", true},
		{"199kr", "199", "SEK", true},
		{"€12.50", "12.50", "EUR", true},
		{"$1,299.00", "1299.00", "USD", true},
		{"£3.20", "3.20", "GBP", true},
		{"1.234,50 EUR", "1234.50", "EUR", true},
		{"1,234,567", "1234567", "SEK", true},
		{"Pris saknas", "0", "SEK", false},
		{"", "0", "SEK", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			price, currency, known := ParsePrice(tt.in, "SEK")
			assert.True(t, price.Equal(decimal.RequireFromString(tt.want)), "got %s", price)
			assert.Equal(t, tt.currency, currency)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestDetectCurrency_Fallback(t *testing.T) {
	assert.Equal(t, "NOK", DetectCurrency("99 kr", "NOK"))
	assert.Equal(t, "EUR", DetectCurrency("99", "EUR"))
	assert.Equal(t, domain.DefaultCurrency, DetectCurrency("99", ""))
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in    string
		value float64
		unit  string
	}{
		{"10 kΩ", 10000, omega},
		{"10 kΩ", 10000, omega},
		{"100 ohm", 100, omega},
		{"4,7µF", 4.7e-6, "F"},
		{"100nF", 100e-9, "F"},
		{"16 MHz", 16e6, "Hz"},
		{"3.3 V", 3.3, "V"},
		{"500 mA", 0.5, "A"},
		{"5 m", 5, "m"},
		{"2 Ah", 2, "Ah"},
		{"42", 42, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, ok := ParseQuantity(tt.in)
			assert.True(t, ok)
			assert.InDelta(t, tt.value, q.Value, tt.value*1e-9+1e-15)
			assert.Equal(t, tt.unit, q.Unit)
		})
	}

	_, ok := ParseQuantity("CFR-25JB")
	assert.False(t, ok)
	_, ok = ParseQuantity("10 kΩ ±5%")
	assert.False(t, ok)
}

func TestNormalizeSpecifications(t *testing.T) {
	got := NormalizeSpecifications(map[string]string{
		"Capacitance": "4.7 µF",
		"RoHS":        "YES",
		"Lead free":   "false",
		"Package":     "  TO-92 ",
		"Empty":       "",
	})
	assert.InDelta(t, 4.7e-6, got["Capacitance"], 1e-15)
	assert.Equal(t, "F", got["Capacitance_unit"])
	assert.Equal(t, true, got["RoHS"])
	assert.Equal(t, false, got["Lead free"])
	assert.Equal(t, "TO-92", got["Package"])
	assert.NotContains(t, got, "Empty")
}

func TestParseStock(t *testing.T) {
	p := electrokit(t)

	in, qty := p.ParseStock("15 i lager")
	assert.True(t, in)
	if assert.NotNil(t, qty) {
		assert.Equal(t, 15, *qty)
	}

	in, qty = p.ParseStock("In stock")
	assert.True(t, in)
	assert.Nil(t, qty)

	in, _ = p.ParseStock("Slut i lager")
	assert.False(t, in)

	in, _ = p.ParseStock("Not in stock")
	assert.False(t, in)

	in, qty = p.ParseStock("0 i lager")
	assert.False(t, in)
	if assert.NotNil(t, qty) {
		assert.Equal(t, 0, *qty)
	}

	in, qty = p.ParseStock("")
	assert.False(t, in)
	assert.Nil(t, qty)
}

func TestParseDeliveryDays(t *testing.T) {
	p := electrokit(t)
	tests := map[string]int{
		"3 dagar":               3,
		"Leveranstid 3-4 dagar": 4,
		"2 - 4 days":            3,
		"1 vecka":               7,
		"2 weeks":               14,
		"Ships in 1-2 weeks":    14,
	}
	for in, want := range tests {
		got := p.ParseDeliveryDays(in)
		if assert.NotNil(t, got, in) {
			assert.Equal(t, want, *got, in)
		}
	}
	assert.Nil(t, p.ParseDeliveryDays("Okänd leveranstid"))
}

func TestCategorize(t *testing.T) {
	p := electrokit(t)
	assert.Equal(t, "resistor", p.Categorize("Motstånd"))
	assert.Equal(t, "capacitor", p.Categorize("", "Kondensatorer"))
	assert.Equal(t, "led", p.Categorize("Blinkande LED röd 5mm"))
	assert.Equal(t, "integrated_circuit", p.Categorize("ic"))
	assert.Equal(t, domain.DefaultCategory, p.Categorize("Gizmo"))
}

func TestSortBreakPoints(t *testing.T) {
	in := []domain.BreakPoint{
		{Quantity: 100, Price: decimal.NewFromInt(1)},
		{Quantity: 1, Price: decimal.NewFromInt(3)},
		{Quantity: 10, Price: decimal.NewFromInt(2)},
		{Quantity: 10, Price: decimal.NewFromInt(9)},
	}
	got := sortBreakPoints(in)
	if assert.Len(t, got, 3) {
		assert.Equal(t, []int{1, 10, 100}, []int{got[0].Quantity, got[1].Quantity, got[2].Quantity})
		assert.True(t, got[1].Price.Equal(decimal.NewFromInt(2)))
	}
	assert.Nil(t, sortBreakPoints(nil))
}
