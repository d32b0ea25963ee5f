package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateCSS(t *testing.T) {
	tests := []struct {
		selector string
		want     string
		ok       bool
	}{
		{".price", "//*[contains(concat(' ', normalize-space(@class), ' '), ' price ')]", true},
		{"#total", "//*[@id='total']", true},
		{"span.amount", "//span[contains(concat(' ', normalize-space(@class), ' '), ' amount ')]", true},
		{"div#total", "//div[@id='total']", true},
		{`meta[itemprop="price"]`, "//meta[@itemprop='price']", true},
		{"[data-price]", "//*[@data-price]", true},
		{"h1", "//h1", true},
		{"div > span", "", false},
		{".a .b", "", false},
		{"div:first-child", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := TranslateCSS(tt.selector)
		assert.Equal(t, tt.ok, ok, "selector %q", tt.selector)
		assert.Equal(t, tt.want, got, "selector %q", tt.selector)
	}
}

func TestTranslateCSSClassTokenSemantics(t *testing.T) {
	doc, err := LoadHTML(`<html><body>
		<div class="sale price-tag big">$10.00</div>
		<div class="price">$20.00</div>
	</body></html>`)
	assert.NoError(t, err)

	// .price must match the whole class token, not the price-tag substring
	xpath, ok := TranslateCSS(".price")
	assert.True(t, ok)
	assert.Equal(t, "$20.00", doc.First(xpath, ""))
}
