package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dealtrack/database"
	"dealtrack/models"

	"github.com/lib/pq"
)

type ScraperRepository struct{}

func NewScraperRepository() *ScraperRepository {
	return &ScraperRepository{}
}

const scraperColumns = `id, name, domain, regions, link_template, default_currency, fetch_mode, use_metadata_fallback,
	consecutive_successes, health_reset_at, is_active, created_at, updated_at`

// GetScraperByID returns a scraper with its rules loaded
func (r *ScraperRepository) GetScraperByID(id int) (*models.Scraper, error) {
	query := `SELECT ` + scraperColumns + ` FROM scrapers WHERE id = $1`

	var s models.Scraper
	err := database.DB.QueryRow(query, id).Scan(
		&s.ID, &s.Name, &s.Domain, pq.Array(&s.Regions), &s.LinkTemplate, &s.DefaultCurrency, &s.FetchMode,
		&s.UseMetadataFallback, &s.ConsecutiveSuccesses, &s.HealthResetAt,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scraper not found")
		}
		return nil, fmt.Errorf("failed to get scraper: %v", err)
	}

	rules, err := r.GetRules(id)
	if err != nil {
		return nil, err
	}
	s.Rules = rules
	return &s, nil
}

// GetRules returns all rules for a scraper ordered by field and priority
func (r *ScraperRepository) GetRules(scraperID int) ([]models.ScraperRule, error) {
	query := `
		SELECT id, scraper_id, field_type, extraction_mode, selector, attribute, regex, fallback_regex,
			priority, true_values, trim_value, strip_tokens, replace_pattern, replace_with, is_active
		FROM scraper_rules
		WHERE scraper_id = $1
		ORDER BY field_type, priority
	`

	rows, err := database.DB.Query(query, scraperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scraper rules: %v", err)
	}
	defer rows.Close()

	var rules []models.ScraperRule
	for rows.Next() {
		var rule models.ScraperRule
		err := rows.Scan(
			&rule.ID, &rule.ScraperID, &rule.FieldType, &rule.ExtractionMode, &rule.Selector,
			&rule.Attribute, &rule.Regex, pq.Array(&rule.FallbackRegex), &rule.Priority,
			pq.Array(&rule.TrueValues), &rule.Trim, pq.Array(&rule.StripTokens),
			&rule.ReplacePattern, &rule.ReplaceWith, &rule.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scraper rule: %v", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// IncrementSuccessStreak bumps the consecutive-success counter and returns the
// new streak value.
func (r *ScraperRepository) IncrementSuccessStreak(scraperID int) (int, error) {
	query := `
		UPDATE scrapers
		SET consecutive_successes = consecutive_successes + 1, updated_at = $2
		WHERE id = $1
		RETURNING consecutive_successes
	`

	var streak int
	err := database.DB.QueryRow(query, scraperID, time.Now()).Scan(&streak)
	if err != nil {
		return 0, fmt.Errorf("failed to increment success streak: %v", err)
	}
	return streak, nil
}

// ResetSuccessStreak zeroes the consecutive-success counter after a failure
func (r *ScraperRepository) ResetSuccessStreak(scraperID int) error {
	query := `UPDATE scrapers SET consecutive_successes = 0, updated_at = $2 WHERE id = $1`

	_, err := database.DB.Exec(query, scraperID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset success streak: %v", err)
	}
	return nil
}

// MarkHealthReset zeroes the streak and stamps health_reset_at
func (r *ScraperRepository) MarkHealthReset(scraperID int, at time.Time) error {
	query := `UPDATE scrapers SET consecutive_successes = 0, health_reset_at = $2, updated_at = $2 WHERE id = $1`

	_, err := database.DB.Exec(query, scraperID, at)
	if err != nil {
		return fmt.Errorf("failed to mark health reset: %v", err)
	}
	return nil
}
