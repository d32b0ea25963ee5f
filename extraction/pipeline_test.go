package extraction

import (
	"database/sql"
	"testing"

	"dealtrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<html><body>
	<span id="label">Price: $12,345.67</span>
	<div class="price">$49.99</div>
	<div class="stock">yes</div>
	<meta itemprop="price" content="19.99">
</body></html>`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testPage)
	require.NoError(t, err)
	return p
}

func priceRule(id, priority int, mode, selector string) models.ScraperRule {
	return models.ScraperRule{
		ID:             id,
		FieldType:      models.FieldPrice,
		ExtractionMode: mode,
		Selector:       selector,
		Priority:       priority,
		IsActive:       true,
	}
}

func TestExtractFieldPriorityOrder(t *testing.T) {
	p := newTestPipeline(t)

	// the rule with the lower priority number wins even when listed last
	rules := []models.ScraperRule{
		priceRule(2, 20, models.ModeQuery, "//span[@id='label']"),
		priceRule(1, 10, models.ModeCSS, ".price"),
	}

	value, trace := p.ExtractField(models.FieldPrice, rules)
	assert.Equal(t, "49.99", value)
	require.Len(t, trace, 1)
	assert.Equal(t, 1, trace[0].RuleID)
	assert.Equal(t, OutcomeMatched, trace[0].Outcome)
}

func TestExtractFieldFallsThroughNonMatches(t *testing.T) {
	p := newTestPipeline(t)

	rules := []models.ScraperRule{
		priceRule(1, 10, models.ModeQuery, "//span[@id='missing']"),
		priceRule(2, 20, models.ModeQuery, "//div[@class='price']"),
	}

	value, trace := p.ExtractField(models.FieldPrice, rules)
	assert.Equal(t, "49.99", value)
	require.Len(t, trace, 2)
	assert.Equal(t, OutcomeNoMatch, trace[0].Outcome)
	assert.Equal(t, OutcomeMatched, trace[1].Outcome)
}

func TestExtractFieldQueryRegexFallbacks(t *testing.T) {
	p := newTestPipeline(t)

	rule := priceRule(1, 10, models.ModeQueryRegex, "//span[@id='label']")
	rule.Regex = sql.NullString{String: `EUR (\d+)`, Valid: true}
	rule.FallbackRegex = []string{`/\$([\d,]+\.\d{2})/`}

	value, _ := p.ExtractField(models.FieldPrice, []models.ScraperRule{rule})
	assert.Equal(t, "12345.67", value)
}

func TestExtractFieldAttribute(t *testing.T) {
	p := newTestPipeline(t)

	rule := priceRule(1, 10, models.ModeQuery, "//meta[@itemprop='price']")
	rule.Attribute = sql.NullString{String: "content", Valid: true}

	value, _ := p.ExtractField(models.FieldPrice, []models.ScraperRule{rule})
	assert.Equal(t, "19.99", value)
}

func TestExtractFieldBooleanStatus(t *testing.T) {
	p := newTestPipeline(t)

	rule := models.ScraperRule{
		ID:             1,
		FieldType:      models.FieldStatus,
		ExtractionMode: models.ModeCSS,
		Selector:       ".stock",
		TrueValues:     []string{"yes", "true", "1"},
		Priority:       10,
		IsActive:       true,
	}

	value, _ := p.ExtractField(models.FieldStatus, []models.ScraperRule{rule})
	assert.Equal(t, models.StatusInStock, value)

	rule.TrueValues = []string{"definitely", "absolutely"}
	value, _ = p.ExtractField(models.FieldStatus, []models.ScraperRule{rule})
	assert.Equal(t, models.StatusOutOfStock, value)
}

func TestExtractFieldSkipsInactiveRules(t *testing.T) {
	p := newTestPipeline(t)

	rule := priceRule(1, 10, models.ModeCSS, ".price")
	rule.IsActive = false

	value, trace := p.ExtractField(models.FieldPrice, []models.ScraperRule{rule})
	assert.Empty(t, value)
	require.Len(t, trace, 1)
	assert.Equal(t, OutcomeSkippedInactive, trace[0].Outcome)
}

func TestExtractFieldTraceExcludesOtherFieldsRules(t *testing.T) {
	p := newTestPipeline(t)

	other := models.ScraperRule{
		ID:             9,
		FieldType:      models.FieldStatus,
		ExtractionMode: models.ModeCSS,
		Selector:       ".stock",
		Priority:       1,
		IsActive:       false,
	}
	rules := []models.ScraperRule{other, priceRule(1, 10, models.ModeCSS, ".price")}

	value, trace := p.ExtractField(models.FieldPrice, rules)
	assert.Equal(t, "49.99", value)

	// an inactive rule for another field leaves no entry in this field's trace
	require.Len(t, trace, 1)
	assert.Equal(t, 1, trace[0].RuleID)
	assert.Equal(t, OutcomeMatched, trace[0].Outcome)
}

func TestExtractFieldInvalidSelectorIsNotFatal(t *testing.T) {
	p := newTestPipeline(t)

	rules := []models.ScraperRule{
		priceRule(1, 10, models.ModeCSS, "div > span.unsupported"),
		priceRule(2, 20, models.ModeCSS, ".price"),
	}

	value, trace := p.ExtractField(models.FieldPrice, rules)
	assert.Equal(t, "49.99", value)
	require.Len(t, trace, 2)
	assert.Equal(t, OutcomeInvalidSelector, trace[0].Outcome)
}

func TestExtractFieldExhaustedRulesIsNull(t *testing.T) {
	p := newTestPipeline(t)

	rules := []models.ScraperRule{
		priceRule(1, 10, models.ModeQuery, "//span[@id='missing']"),
	}

	value, trace := p.ExtractField(models.FieldPrice, rules)
	assert.Empty(t, value)
	assert.Len(t, trace, 1)
}

func TestExtractFieldJSONPath(t *testing.T) {
	p, err := NewPipeline(`<html><head>
		<script type="application/ld+json">{"@type": "Product", "offers": {"price": "89.00", "priceCurrency": "EUR"}}</script>
	</head></html>`)
	require.NoError(t, err)

	rule := priceRule(1, 10, models.ModeJSONPath, "offers.price")
	value, _ := p.ExtractField(models.FieldPrice, []models.ScraperRule{rule})
	assert.Equal(t, "89.00", value)
}
