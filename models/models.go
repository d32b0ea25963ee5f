package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Status values crossing the API boundary
const (
	StatusInStock          = "In Stock"
	StatusOutOfStock       = "Out of Stock"
	StatusPreOrder         = "Pre-Order"
	StatusBackorder        = "Backorder"
	StatusPriceUnavailable = "Price Unavailable"
)

// Parser kinds for tracked sources
const (
	ParserKindAmazon  = "amazon_api"
	ParserKindShopify = "shopify_storefront"
	ParserKindScraper = "scraper"
)

// TrackedSource represents one URL or identifier monitored for one product
// in one region scope. For amazon_api sources the identifier is an ASIN and
// region_scope is exactly one region code; for shopify_storefront sources the
// identifier is a product handle; for scraper sources the identifier is a page
// URL and applicability comes from the owning scraper's region list, not
// region_scope.
type TrackedSource struct {
	ID                  int             `json:"id" db:"id"`
	ProductID           int             `json:"product_id" db:"product_id"`
	Identifier          string          `json:"identifier" db:"identifier"`
	ParserKind          string          `json:"parser_kind" db:"parser_kind"`
	ScraperID           sql.NullInt64   `json:"scraper_id" db:"scraper_id"`
	RegionScope         string          `json:"region_scope" db:"region_scope"`
	StoreDomain         sql.NullString  `json:"store_domain" db:"store_domain"`
	StoreToken          sql.NullString  `json:"-" db:"store_token"`
	CurrentPrice        sql.NullFloat64 `json:"current_price" db:"current_price"`
	CurrentCurrency     sql.NullString  `json:"current_currency" db:"current_currency"`
	ConsecutiveFailures int             `json:"consecutive_failures" db:"consecutive_failures"`
	LastError           sql.NullString  `json:"last_error" db:"last_error"`
	LastScrapedAt       *time.Time      `json:"last_scraped_at" db:"last_scraped_at"`
	AffiliateOverride   sql.NullString  `json:"affiliate_override" db:"affiliate_override"`
	IsActive            bool            `json:"is_active" db:"is_active"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// GetCurrentPrice returns the current price as float64, or 0 if NULL
func (s *TrackedSource) GetCurrentPrice() float64 {
	if s.CurrentPrice.Valid {
		return s.CurrentPrice.Float64
	}
	return 0.0
}

// HasPrice returns true if the source has a current price
func (s *TrackedSource) HasPrice() bool {
	return s.CurrentPrice.Valid
}

// IsScraperBacked returns true if the source is driven by an operator scraper
func (s *TrackedSource) IsScraperBacked() bool {
	return s.ParserKind == ParserKindScraper && s.ScraperID.Valid
}

// MarshalJSON implements custom JSON marshaling for TrackedSource
func (s *TrackedSource) MarshalJSON() ([]byte, error) {
	type Alias TrackedSource
	return json.Marshal(&struct {
		*Alias
		ScraperID         *int64   `json:"scraper_id"`
		CurrentPrice      *float64 `json:"current_price"`
		CurrentCurrency   *string  `json:"current_currency"`
		LastError         *string  `json:"last_error"`
		AffiliateOverride *string  `json:"affiliate_override"`
		StoreDomain       *string  `json:"store_domain"`
	}{
		Alias:             (*Alias)(s),
		ScraperID:         nullInt64Ptr(s.ScraperID),
		CurrentPrice:      nullFloatPtr(s.CurrentPrice),
		CurrentCurrency:   nullStringPtr(s.CurrentCurrency),
		LastError:         nullStringPtr(s.LastError),
		AffiliateOverride: nullStringPtr(s.AffiliateOverride),
		StoreDomain:       nullStringPtr(s.StoreDomain),
	})
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if v.Valid {
		f := v.Float64
		return &f
	}
	return nil
}

func nullStringPtr(v sql.NullString) *string {
	if v.Valid {
		s := v.String
		return &s
	}
	return nil
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if v.Valid {
		i := v.Int64
		return &i
	}
	return nil
}

// PriceHistory represents one immutable price snapshot for a tracked source.
// Rows are append-only; they are the sole basis for history charts and
// min/max/avg summaries.
type PriceHistory struct {
	ID        int            `json:"id" db:"id"`
	SourceID  int            `json:"source_id" db:"source_id"`
	Price     float64        `json:"price" db:"price"`
	Currency  string         `json:"currency" db:"currency"`
	Status    sql.NullString `json:"status" db:"status"`
	CheckedAt time.Time      `json:"checked_at" db:"checked_at"`
}

// MarshalJSON implements custom JSON marshaling for PriceHistory
func (h *PriceHistory) MarshalJSON() ([]byte, error) {
	type Alias PriceHistory
	return json.Marshal(&struct {
		*Alias
		Status *string `json:"status"`
	}{
		Alias:  (*Alias)(h),
		Status: nullStringPtr(h.Status),
	})
}

// ScraperLog is one per-attempt diagnostic record. The extraction trace and
// payload are JSON blobs used for debugging only, never authoritative.
type ScraperLog struct {
	ID         int64          `json:"id" db:"id"`
	ScraperID  sql.NullInt64  `json:"scraper_id" db:"scraper_id"`
	SourceID   sql.NullInt64  `json:"source_id" db:"source_id"`
	Success    bool           `json:"success" db:"success"`
	Payload    sql.NullString `json:"payload" db:"payload"`
	Trace      sql.NullString `json:"trace" db:"trace"`
	ErrorText  sql.NullString `json:"error_text" db:"error_text"`
	DurationMs int64          `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// ResolvedLink is one region-matched source with its assembled outbound URL.
type ResolvedLink struct {
	SourceID   int      `json:"source_id"`
	ProductID  int      `json:"product_id"`
	ParserKind string   `json:"parser_kind"`
	URL        string   `json:"url"`
	Price      *float64 `json:"price"`
	Currency   *string  `json:"currency"`
	Status     *string  `json:"status"`
	Region     string   `json:"region"`
}

// ResolveResult is the answer to a (product, region) link resolution.
type ResolveResult struct {
	Links           []ResolvedLink `json:"links"`
	FallbackMessage string         `json:"fallback_message"`
	ResolvedRegion  string         `json:"resolved_region"`
}

// PriceSummary holds min/max/avg over a series of snapshots.
type PriceSummary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// SourceHistory is the per-source slice of a product history response.
type SourceHistory struct {
	SourceID   int            `json:"source_id"`
	ParserKind string         `json:"parser_kind"`
	Region     string         `json:"region"`
	Entries    []PriceHistory `json:"entries"`
	Summary    PriceSummary   `json:"summary"`
}

// ProductHistory is the full history answer for one product.
type ProductHistory struct {
	ProductID int             `json:"product_id"`
	Sources   []SourceHistory `json:"sources"`
	Overall   PriceSummary    `json:"overall"`
}

// ChartPoint is one (time, price) sample in a chart series.
type ChartPoint struct {
	Time  time.Time `json:"t"`
	Price float64   `json:"p"`
}

// ChartSeries is a region-filtered per-source time series.
type ChartSeries struct {
	SourceID   int          `json:"source_id"`
	ParserKind string       `json:"parser_kind"`
	Points     []ChartPoint `json:"points"`
}

// ScraperHealthView is a read-only derived view over logs and counters.
// Operators never mutate the underlying counters directly.
type ScraperHealthView struct {
	ScraperID            int        `json:"scraper_id"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	HealthResetAt        *time.Time `json:"health_reset_at"`
	TrailingSuccessRate  float64    `json:"trailing_success_rate"`
	TrailingAttempts     int        `json:"trailing_attempts"`
}
