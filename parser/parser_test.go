package parser

import (
	"testing"

	"dealtrack/config"
	"dealtrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchesByKind(t *testing.T) {
	deps := Deps{Amazon: &config.AmazonConfig{}, Fetcher: NewFetcher()}

	p, err := New(models.ParserKindAmazon, nil, deps)
	require.NoError(t, err)
	assert.IsType(t, &AmazonParser{}, p)

	p, err = New(models.ParserKindShopify, nil, deps)
	require.NoError(t, err)
	assert.IsType(t, &ShopifyParser{}, p)

	p, err = New(models.ParserKindScraper, &models.Scraper{IsActive: true}, deps)
	require.NoError(t, err)
	assert.IsType(t, &PageScraper{}, p)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	var cfgErr *ConfigurationError
	_, err := New("ebay_api", nil, Deps{})
	require.ErrorAs(t, err, &cfgErr)
}
