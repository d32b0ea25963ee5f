package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dealtrack/config"
	"dealtrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPacer struct {
	calls int32
}

func (c *countingPacer) Wait(ctx context.Context, key string) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func amazonSource(asin, region string) *models.TrackedSource {
	return &models.TrackedSource{
		ID:          1,
		ProductID:   1,
		Identifier:  asin,
		ParserKind:  models.ParserKindAmazon,
		RegionScope: region,
		IsActive:    true,
	}
}

func newAmazonParser(endpoint string, cfg *config.AmazonConfig) *AmazonParser {
	return &AmazonParser{
		cfg:      cfg,
		client:   &http.Client{Timeout: 5 * time.Second},
		pacer:    NewRateLimiter(time.Millisecond),
		endpoint: endpoint,
	}
}

func testAmazonConfig(tokenURL string) *config.AmazonConfig {
	return &config.AmazonConfig{
		AccessToken:  "initial-token",
		RefreshToken: "refresh-token",
		TokenURL:     tokenURL,
		PartnerTag:   "test-tag",
		Enabled:      true,
	}
}

const buyBoxResponse = `{"items": [{"asin": "B0TESTASIN", "listings": [
	{"is_buybox_winner": false, "condition": "new", "price": {"amount": 25.00, "currency": "USD"}},
	{"is_buybox_winner": true, "condition": "new", "availability": "In Stock.", "fulfilled_by_retailer": true, "price": {"amount": 19.99, "currency": "USD"}}
]}]}`

func TestAmazonParseBuyBoxWinner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer initial-token", r.Header.Get("Authorization"))
		w.Write([]byte(buyBoxResponse))
	}))
	defer srv.Close()

	p := newAmazonParser(srv.URL, testAmazonConfig(""))
	result, err := p.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)

	require.NotNil(t, result.Price)
	assert.Equal(t, 19.99, *result.Price)
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, models.StatusInStock, result.Status)
	assert.Equal(t, "Free Shipping", result.ShippingInfo)
}

func TestAmazonParseRefreshesExpiredToken(t *testing.T) {
	refreshed := false
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-token", r.Form.Get("refresh_token"))
		refreshed = true
		w.Write([]byte(`{"access_token": "fresh-token"}`))
	}))
	defer tokenSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "access token has expired"}`))
			return
		}
		w.Write([]byte(buyBoxResponse))
	}))
	defer srv.Close()

	p := newAmazonParser(srv.URL, testAmazonConfig(tokenSrv.URL))
	result, err := p.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)
	assert.True(t, refreshed)
	require.NotNil(t, result.Price)
	assert.Equal(t, 19.99, *result.Price)
}

func TestAmazonParsersShareRefreshedToken(t *testing.T) {
	var exchanges int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		w.Write([]byte(`{"access_token": "fresh-token"}`))
	}))
	defer tokenSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "access token has expired"}`))
			return
		}
		w.Write([]byte(buyBoxResponse))
	}))
	defer srv.Close()

	cfg := testAmazonConfig(tokenSrv.URL)
	pacer := &countingPacer{}
	first := &AmazonParser{cfg: cfg, client: srv.Client(), pacer: pacer, endpoint: srv.URL}
	second := &AmazonParser{cfg: cfg, client: srv.Client(), pacer: pacer, endpoint: srv.URL}

	_, err := first.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)

	// the second parser picks up the replaced token without another exchange
	_, err = second.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
	assert.Equal(t, "fresh-token", cfg.Token())

	// three catalog attempts in total, each one paced
	assert.Equal(t, int32(3), atomic.LoadInt32(&pacer.calls))
}

func TestAmazonPacesEveryAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(buyBoxResponse))
	}))
	defer srv.Close()

	pacer := &countingPacer{}
	p := &AmazonParser{cfg: testAmazonConfig(""), client: srv.Client(), pacer: pacer, endpoint: srv.URL}

	_, err := p.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pacer.calls))
}

func TestAmazonParseRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(buyBoxResponse))
	}))
	defer srv.Close()

	p := newAmazonParser(srv.URL, testAmazonConfig(""))
	_, err := p.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAmazonParseValidation(t *testing.T) {
	p := newAmazonParser("", testAmazonConfig(""))

	var valErr *ValidationError
	_, err := p.Parse(context.Background(), amazonSource("not-an-asin", "US"))
	assert.ErrorAs(t, err, &valErr)

	var cfgErr *ConfigurationError
	p = newAmazonParser("", &config.AmazonConfig{Enabled: false})
	_, err = p.Parse(context.Background(), amazonSource("B0TESTASIN", "US"))
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPickListing(t *testing.T) {
	listing := func(condition string, amount float64) catalogListing {
		l := catalogListing{Condition: condition}
		l.Price.Amount = amount
		return l
	}

	listings := []catalogListing{
		listing("used", 5.00),
		listing("new", 12.00),
		listing("New", 9.00),
	}

	// no buy-box winner: lowest-priced new listing wins
	picked := pickListing(listings)
	require.NotNil(t, picked)
	assert.Equal(t, 9.00, picked.Price.Amount)

	assert.Nil(t, pickListing(nil))
}

func TestAvailabilityStatus(t *testing.T) {
	tests := []struct {
		availability string
		price        float64
		want         string
	}{
		{"In Stock.", 10, models.StatusInStock},
		{"Pre-order now", 10, models.StatusPreOrder},
		{"Vorbestellbar", 10, models.StatusPreOrder},
		{"Currently unavailable", 0, models.StatusOutOfStock},
		{"Derzeit nicht verfügbar", 0, models.StatusOutOfStock},
		{"On backorder", 10, models.StatusBackorder},
		{"", 10, models.StatusInStock},
		{"", 0, models.StatusPriceUnavailable},
	}

	for _, tt := range tests {
		l := &catalogListing{Availability: tt.availability}
		l.Price.Amount = tt.price
		assert.Equal(t, tt.want, availabilityStatus(l), "availability %q", tt.availability)
	}
}
