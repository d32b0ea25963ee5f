package extraction

import (
	"regexp"
	"strings"
)

var (
	numericRunRe  = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	isoCurrencyRe = regexp.MustCompile(`\b[A-Z]{3}\b`)
	shippingLabel = regexp.MustCompile(`(?i)^\s*(shipping|delivery)\s*:\s*`)
	freeShipping  = regexp.MustCompile(`(?i)free\s+(shipping|delivery)`)
)

// currencySymbols maps common symbols and prefixes to ISO codes
var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"C$":  "CAD",
	"CA$": "CAD",
	"A$":  "AUD",
	"AU$": "AUD",
	"KR":  "SEK",
}

// statusSynonyms is the fixed synonym table for stock status text
var statusSynonyms = map[string]string{
	"in stock":     "In Stock",
	"instock":      "In Stock",
	"available":    "In Stock",
	"out of stock": "Out of Stock",
	"outofstock":   "Out of Stock",
	"unavailable":  "Out of Stock",
	"sold out":     "Out of Stock",
	"pre-order":    "Pre-order",
	"preorder":     "Pre-order",
	"pre order":    "Pre-order",
	"backorder":    "Backorder",
	"back-order":   "Backorder",
	"back order":   "Backorder",
	"backordered":  "Backorder",
}

// NormalizePrice strips configured currency tokens and prefixes, removes
// thousands separators, converts a comma decimal separator to a dot, then
// extracts the first numeric run. Normalizing an already-normalized value
// returns it unchanged.
func NormalizePrice(value string, stripTokens []string) string {
	v := strings.TrimSpace(value)
	for _, token := range stripTokens {
		if token != "" {
			v = strings.ReplaceAll(v, token, "")
		}
	}
	for symbol := range currencySymbols {
		v = strings.ReplaceAll(v, symbol, "")
	}
	v = strings.TrimSpace(v)

	hasComma := strings.Contains(v, ",")
	hasDot := strings.Contains(v, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(v, ",") > strings.LastIndex(v, ".") {
			// European style: dots are thousands, comma is decimal
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case hasComma:
		// a single trailing comma group of 1-2 digits is a decimal separator
		idx := strings.LastIndex(v, ",")
		if strings.Count(v, ",") == 1 && len(v)-idx-1 <= 2 {
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	}

	return numericRunRe.FindString(v)
}

// NormalizeCurrency uppercases the value, maps common symbols to ISO codes
// and otherwise extracts an embedded 3-letter code. Unmapped tokens come back
// uppercased unchanged.
func NormalizeCurrency(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	if code, ok := currencySymbols[v]; ok {
		return code
	}
	if code := isoCurrencyRe.FindString(v); code != "" {
		return code
	}
	return v
}

// NormalizeStatus maps stock-status text through the synonym table,
// case-insensitively. Unmapped strings pass through trimmed with their
// original casing.
func NormalizeStatus(value string) string {
	v := strings.TrimSpace(value)
	if mapped, ok := statusSynonyms[strings.ToLower(v)]; ok {
		return mapped
	}
	return v
}

// NormalizeShipping strips leading "shipping:"/"delivery:" labels and
// collapses any free shipping/delivery phrasing to "Free Shipping".
func NormalizeShipping(value string) string {
	v := shippingLabel.ReplaceAllString(strings.TrimSpace(value), "")
	if freeShipping.MatchString(v) {
		return "Free Shipping"
	}
	return strings.TrimSpace(v)
}

// ApplyReplace applies an optional caller-supplied regex replacement. An
// invalid pattern leaves the value unchanged; operator config must never
// fail a scrape at runtime.
func ApplyReplace(value, pattern, replacement string) string {
	if pattern == "" {
		return value
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value
	}
	return re.ReplaceAllString(value, replacement)
}
