package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealtrack/config"
	"dealtrack/models"
	"dealtrack/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSources struct {
	sources []models.TrackedSource
}

func (s *stubSources) GetSourcesByProduct(productID int) ([]models.TrackedSource, error) {
	return s.sources, nil
}

type stubScrapers struct{}

func (s *stubScrapers) GetScraperByID(id int) (*models.Scraper, error) {
	return &models.Scraper{ID: id, IsActive: true}, nil
}

func testRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/products/{id}/links", h.ResolveLinks).Methods("GET")
	r.HandleFunc("/api/v1/scrapers/rules/validate", h.ValidateRules).Methods("POST")
	return r
}

func newTestHandlers(sources []models.TrackedSource) *Handlers {
	geo := services.NewGeoService(
		&stubSources{sources: sources},
		&stubScrapers{},
		nil,
		&config.AppConfig{DefaultRegion: "US"},
		&config.AmazonConfig{PartnerTag: "deal-20"},
	)
	return NewHandlers(geo, nil, nil, nil, nil, "US")
}

func TestResolveLinksEndpoint(t *testing.T) {
	h := newTestHandlers([]models.TrackedSource{
		{ID: 1, ProductID: 42, Identifier: "B0TESTASIN", ParserKind: models.ParserKindAmazon, RegionScope: "US", IsActive: true},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/42/links?region=us", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ResolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Links, 1)
	assert.Equal(t, "https://www.amazon.com/dp/B0TESTASIN?tag=deal-20", result.Links[0].URL)
	assert.Equal(t, "US", result.ResolvedRegion)
}

func TestResolveLinksEndpointBadID(t *testing.T) {
	h := newTestHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/abc/links", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateRulesEndpoint(t *testing.T) {
	h := newTestHandlers(nil)

	body := `[
		{"field_type": "price", "extraction_mode": "css", "selector": ".price"},
		{"field_type": "price", "extraction_mode": "query_regex", "selector": "//span", "regex": "(\\d+"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrapers/rules/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Valid   bool `json:"valid"`
		Results []struct {
			Index int    `json:"index"`
			Valid bool   `json:"valid"`
			Error string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Valid)
	assert.False(t, result.Results[1].Valid)
	assert.Contains(t, result.Results[1].Error, "invalid regex")
}
