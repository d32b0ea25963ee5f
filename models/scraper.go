package models

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Rule field types
const (
	FieldPrice    = "price"
	FieldStatus   = "status"
	FieldShipping = "shipping"
)

// Rule extraction modes
const (
	ModeQuery      = "query"
	ModeQueryRegex = "query_regex"
	ModeCSS        = "css"
	ModeJSONPath   = "json_path"
)

// Scraper fetch modes
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Scraper is an operator-configured bundle of extraction rules targeting one
// retailer's markup. Regions is the allow-list that governs which requested
// regions the scraper's sources apply to. Health counters live here so they
// are correct across worker processes.
type Scraper struct {
	ID                   int            `json:"id" db:"id"`
	Name                 string         `json:"name" db:"name"`
	Domain               string         `json:"domain" db:"domain"`
	Regions              []string       `json:"regions" db:"regions"`
	LinkTemplate         sql.NullString `json:"link_template" db:"link_template"`
	DefaultCurrency      string         `json:"default_currency" db:"default_currency"`
	FetchMode            string         `json:"fetch_mode" db:"fetch_mode"`
	UseMetadataFallback  bool           `json:"use_metadata_fallback" db:"use_metadata_fallback"`
	ConsecutiveSuccesses int            `json:"consecutive_successes" db:"consecutive_successes"`
	HealthResetAt        *time.Time     `json:"health_reset_at" db:"health_reset_at"`
	IsActive             bool           `json:"is_active" db:"is_active"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`

	Rules []ScraperRule `json:"rules,omitempty"`
}

// ServesRegion reports whether the requested region is in the allow-list.
// Matching is case-insensitive on region codes.
func (s *Scraper) ServesRegion(region string) bool {
	for _, r := range s.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// ActiveRulesForField returns the scraper's active rules for one field,
// sorted by ascending priority (lower number tried first).
func (s *Scraper) ActiveRulesForField(field string) []ScraperRule {
	var rules []ScraperRule
	for _, r := range s.Rules {
		if r.IsActive && r.FieldType == field {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return rules
}

// ScraperRule is one extraction instruction for one (scraper, field) pair.
type ScraperRule struct {
	ID             int            `json:"id" db:"id"`
	ScraperID      int            `json:"scraper_id" db:"scraper_id"`
	FieldType      string         `json:"field_type" db:"field_type"`
	ExtractionMode string         `json:"extraction_mode" db:"extraction_mode"`
	Selector       string         `json:"selector" db:"selector"`
	Attribute      sql.NullString `json:"attribute" db:"attribute"`
	Regex          sql.NullString `json:"regex" db:"regex"`
	FallbackRegex  []string       `json:"fallback_regex" db:"fallback_regex"`
	Priority       int            `json:"priority" db:"priority"`
	TrueValues     []string       `json:"true_values" db:"true_values"`
	Trim           bool           `json:"trim" db:"trim"`
	StripTokens    []string       `json:"strip_tokens" db:"strip_tokens"`
	ReplacePattern sql.NullString `json:"replace_pattern" db:"replace_pattern"`
	ReplaceWith    sql.NullString `json:"replace_with" db:"replace_with"`
	IsActive       bool           `json:"is_active" db:"is_active"`
}

// IsBoolean reports whether the rule maps raw text onto In Stock/Out of Stock
// through its configured true-value set instead of normal post-processing.
func (r *ScraperRule) IsBoolean() bool {
	return r.FieldType == FieldStatus && len(r.TrueValues) > 0
}

// Patterns returns the primary regex followed by the ordered fallbacks.
func (r *ScraperRule) Patterns() []string {
	var out []string
	if r.Regex.Valid && r.Regex.String != "" {
		out = append(out, r.Regex.String)
	}
	out = append(out, r.FallbackRegex...)
	return out
}

// Validate checks a rule at configuration-save time. Runtime extraction stays
// fail-open on bad patterns; this exists so operator mistakes surface when the
// rule is saved rather than silently at scrape time.
func (r *ScraperRule) Validate() error {
	switch r.FieldType {
	case FieldPrice, FieldStatus, FieldShipping:
	default:
		return fmt.Errorf("unknown field_type %q", r.FieldType)
	}
	switch r.ExtractionMode {
	case ModeQuery, ModeQueryRegex, ModeCSS, ModeJSONPath:
	default:
		return fmt.Errorf("unknown extraction_mode %q", r.ExtractionMode)
	}
	if strings.TrimSpace(r.Selector) == "" {
		return fmt.Errorf("selector is required")
	}
	for _, p := range r.Patterns() {
		if _, err := regexp.Compile(stripDelimiters(p)); err != nil {
			return fmt.Errorf("invalid regex %q: %v", p, err)
		}
	}
	if r.ReplacePattern.Valid && r.ReplacePattern.String != "" {
		if _, err := regexp.Compile(r.ReplacePattern.String); err != nil {
			return fmt.Errorf("invalid replace pattern %q: %v", r.ReplacePattern.String, err)
		}
	}
	return nil
}

// stripDelimiters removes the /.../ wrapper operators sometimes paste in.
func stripDelimiters(pattern string) string {
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return pattern[1 : len(pattern)-1]
	}
	return pattern
}
