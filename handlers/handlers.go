package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealtrack/models"
	"dealtrack/repository"
	"dealtrack/services"

	"github.com/gorilla/mux"
)

// Trailing window for the derived scraper health view
const healthWindow = 50

type Handlers struct {
	geo      *services.GeoService
	history  *services.HistoryService
	refresh  *services.RefreshService
	scrapers *repository.ScraperRepository
	logs     *repository.LogRepository

	defaultRegion string
}

func NewHandlers(geo *services.GeoService, history *services.HistoryService, refresh *services.RefreshService, scrapers *repository.ScraperRepository, logs *repository.LogRepository, defaultRegion string) *Handlers {
	return &Handlers{
		geo:           geo,
		history:       history,
		refresh:       refresh,
		scrapers:      scrapers,
		logs:          logs,
		defaultRegion: defaultRegion,
	}
}

// regionFromRequest picks the region for a request: explicit query parameter
// first, then the geo service's per-client memory seeded from edge country
// headers, then the configured default.
func (h *Handlers) regionFromRequest(r *http.Request) string {
	if region := r.URL.Query().Get("region"); region != "" {
		return region
	}
	if h.geo != nil {
		return h.geo.RegionForClient(r.Context(), clientIP(r), r.Header.Get("CF-IPCountry"))
	}
	return h.defaultRegion
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "dealtrack",
	}
	writeJSON(w, http.StatusOK, response)
}

// ResolveLinks returns region-scoped outbound links for a product
func (h *Handlers) ResolveLinks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	region := h.regionFromRequest(r)

	result, err := h.geo.ResolveLinks(r.Context(), productID, region)
	if err != nil {
		log.Printf("Failed to resolve links for product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to resolve links")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetPriceHistory returns per-source price history and summaries for a product
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	result, err := h.history.GetPriceHistory(productID)
	if err != nil {
		log.Printf("Failed to get price history for product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetPriceHistoryChart returns region-filtered chart series for a product
func (h *Handlers) GetPriceHistoryChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	region := h.regionFromRequest(r)

	series, err := h.history.GetPriceHistoryChart(r.Context(), productID, region)
	if err != nil {
		log.Printf("Failed to get chart for product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get chart data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"region":     region,
		"series":     series,
	})
}

// RefreshSource triggers a refresh of one tracked source. The refresh blocks
// through pacing and retries, so it runs off the request path; the response
// only acknowledges the trigger.
func (h *Handlers) RefreshSource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sourceID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := h.refresh.RefreshSource(ctx, sourceID); err != nil {
			log.Printf("Refresh of source %d failed: %v", sourceID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Refresh started",
		"source_id": sourceID,
	})
}

// GetScraperHealth returns the derived health view for a scraper
func (h *Handlers) GetScraperHealth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scraperID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scraper ID")
		return
	}

	scraper, err := h.scrapers.GetScraperByID(scraperID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Scraper not found")
		return
	}

	rate, attempts, err := h.logs.TrailingSuccessRate(scraperID, healthWindow)
	if err != nil {
		log.Printf("Failed to compute success rate for scraper %d: %v", scraperID, err)
		writeError(w, http.StatusInternalServerError, "Failed to compute health view")
		return
	}

	view := models.ScraperHealthView{
		ScraperID:            scraper.ID,
		ConsecutiveSuccesses: scraper.ConsecutiveSuccesses,
		HealthResetAt:        scraper.HealthResetAt,
		TrailingSuccessRate:  rate,
		TrailingAttempts:     attempts,
	}
	writeJSON(w, http.StatusOK, view)
}

// RuleSpec is the submitted form of one extraction rule.
type RuleSpec struct {
	FieldType      string   `json:"field_type"`
	ExtractionMode string   `json:"extraction_mode"`
	Selector       string   `json:"selector"`
	Attribute      string   `json:"attribute"`
	Regex          string   `json:"regex"`
	FallbackRegex  []string `json:"fallback_regex"`
	Priority       int      `json:"priority"`
	TrueValues     []string `json:"true_values"`
	ReplacePattern string   `json:"replace_pattern"`
	ReplaceWith    string   `json:"replace_with"`
}

func (s *RuleSpec) toRule() models.ScraperRule {
	return models.ScraperRule{
		FieldType:      s.FieldType,
		ExtractionMode: s.ExtractionMode,
		Selector:       s.Selector,
		Attribute:      sql.NullString{String: s.Attribute, Valid: s.Attribute != ""},
		Regex:          sql.NullString{String: s.Regex, Valid: s.Regex != ""},
		FallbackRegex:  s.FallbackRegex,
		Priority:       s.Priority,
		TrueValues:     s.TrueValues,
		ReplacePattern: sql.NullString{String: s.ReplacePattern, Valid: s.ReplacePattern != ""},
		ReplaceWith:    sql.NullString{String: s.ReplaceWith, Valid: s.ReplaceWith != ""},
	}
}

// ValidateRules checks submitted extraction rules for configuration mistakes
// (malformed regex patterns, unknown modes) before they are saved.
func (h *Handlers) ValidateRules(w http.ResponseWriter, r *http.Request) {
	var specs []RuleSpec
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	type ruleResult struct {
		Index int    `json:"index"`
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	}

	results := make([]ruleResult, 0, len(specs))
	valid := true
	for i, spec := range specs {
		rule := spec.toRule()
		res := ruleResult{Index: i, Valid: true}
		if err := rule.Validate(); err != nil {
			res.Valid = false
			res.Error = err.Error()
			valid = false
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   valid,
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
