package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "99.99", "99.99"},
		{"dollar sign", "$99.99", "99.99"},
		{"euro symbol", "€1.299,00", "1299.00"},
		{"us thousands", "1,299.00", "1299.00"},
		{"comma decimal", "49,95", "49.95"},
		{"comma thousands only", "1,299", "1299"},
		{"surrounding text", "Price: $12.50 incl. tax", "12.50"},
		{"integer", "150", "150"},
		{"empty", "", ""},
		{"no digits", "call for price", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrice(tt.input, nil))
		})
	}
}

func TestNormalizePriceIdempotent(t *testing.T) {
	once := NormalizePrice("$1.299,95", nil)
	assert.Equal(t, once, NormalizePrice(once, nil))
}

func TestNormalizePriceStripTokens(t *testing.T) {
	got := NormalizePrice("ca. 49,95 kr", []string{"ca.", "kr"})
	assert.Equal(t, "49.95", got)
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"usd", "USD"},
		{" EUR ", "EUR"},
		{"Price in GBP only", "GBP"},
		{"C$", "CAD"},
		{"XY", "XY"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCurrency(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"in stock", "In Stock"},
		{"In Stock", "In Stock"},
		{"INSTOCK", "In Stock"},
		{"available", "In Stock"},
		{"Sold Out", "Out of Stock"},
		{"OUT OF STOCK", "Out of Stock"},
		{"unavailable", "Out of Stock"},
		{"PreOrder", "Pre-order"},
		{"pre order", "Pre-order"},
		{"backordered", "Backorder"},
		{"Ships in 3 days", "Ships in 3 days"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeShipping(t *testing.T) {
	assert.Equal(t, "Free Shipping", NormalizeShipping("FREE shipping on orders over $25"))
	assert.Equal(t, "Free Shipping", NormalizeShipping("Shipping: free delivery"))
	assert.Equal(t, "$4.99", NormalizeShipping("Shipping: $4.99"))
	assert.Equal(t, "Ships tomorrow", NormalizeShipping("  Ships tomorrow  "))
}

func TestApplyReplace(t *testing.T) {
	assert.Equal(t, "1299", ApplyReplace("12|99", `\|`, ""))
	// invalid pattern leaves the value untouched
	assert.Equal(t, "12.99", ApplyReplace("12.99", `[`, ""))
	assert.Equal(t, "12.99", ApplyReplace("12.99", "", "x"))
}
