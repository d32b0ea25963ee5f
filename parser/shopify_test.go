package parser

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealtrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopifySource(handle string) *models.TrackedSource {
	return &models.TrackedSource{
		ID:          1,
		ProductID:   1,
		Identifier:  handle,
		ParserKind:  models.ParserKindShopify,
		RegionScope: "US",
		StoreDomain: sql.NullString{String: "shop.example.com", Valid: true},
		StoreToken:  sql.NullString{String: "token-123", Valid: true},
		IsActive:    true,
	}
}

func TestShopifyParseFirstVariant(t *testing.T) {
	var gotToken string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Storefront-Access-Token")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data": {"product": {
			"title": "Gadget",
			"variants": {"edges": [{"node": {"availableForSale": true, "price": {"amount": "49.95", "currencyCode": "USD"}}}]},
			"priceRange": {"minVariantPrice": {"amount": "49.95", "currencyCode": "USD"}}
		}}}`))
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	result, err := p.Parse(context.Background(), shopifySource("gadget"))
	require.NoError(t, err)

	require.NotNil(t, result.Price)
	assert.Equal(t, 49.95, *result.Price)
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, models.StatusInStock, result.Status)
	assert.Equal(t, "token-123", gotToken)

	// region context rides along when the region is known
	query, _ := gotBody["query"].(string)
	assert.Contains(t, query, "@inContext")
	vars, _ := gotBody["variables"].(map[string]interface{})
	assert.Equal(t, "US", vars["country"])
}

func TestShopifyParseUnavailableVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"product": {
			"variants": {"edges": [{"node": {"availableForSale": false, "price": {"amount": "20.00", "currencyCode": "EUR"}}}]},
			"priceRange": {"minVariantPrice": {"amount": "20.00", "currencyCode": "EUR"}}
		}}}`))
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	result, err := p.Parse(context.Background(), shopifySource("gadget"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutOfStock, result.Status)
}

func TestShopifyParseFallsBackToPriceRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"product": {
			"variants": {"edges": []},
			"priceRange": {"minVariantPrice": {"amount": "15.50", "currencyCode": "GBP"}}
		}}}`))
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	result, err := p.Parse(context.Background(), shopifySource("gadget"))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.Equal(t, 15.50, *result.Price)
	assert.Equal(t, "GBP", result.Currency)
}

func TestShopifyParseGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "throttled"}]}`))
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	_, err := p.Parse(context.Background(), shopifySource("gadget"))

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Msg, "throttled")
}

func TestShopifyParseMissingProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"product": null}}`))
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	_, err := p.Parse(context.Background(), shopifySource("gadget"))

	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestShopifyParseHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	p := &ShopifyParser{client: srv.Client(), endpoint: srv.URL}
	_, err := p.Parse(context.Background(), shopifySource("gadget"))

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
}

func TestShopifyParseConfigErrors(t *testing.T) {
	p := &ShopifyParser{client: http.DefaultClient}

	src := shopifySource("gadget")
	src.StoreDomain = sql.NullString{}
	var cfgErr *ConfigurationError
	_, err := p.Parse(context.Background(), src)
	assert.ErrorAs(t, err, &cfgErr)

	src = shopifySource("gadget")
	src.StoreToken = sql.NullString{}
	_, err = p.Parse(context.Background(), src)
	assert.ErrorAs(t, err, &cfgErr)

	src = shopifySource("Not A Handle!")
	var valErr *ValidationError
	_, err = p.Parse(context.Background(), src)
	assert.ErrorAs(t, err, &valErr)
}
