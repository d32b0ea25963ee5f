package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dealtrack/database"
	"dealtrack/models"
)

type SourceRepository struct{}

func NewSourceRepository() *SourceRepository {
	return &SourceRepository{}
}

const sourceColumns = `id, product_id, identifier, parser_kind, scraper_id, region_scope, store_domain, store_token,
	current_price, current_currency, consecutive_failures, last_error, last_scraped_at, affiliate_override,
	is_active, created_at, updated_at`

func scanSource(row interface{ Scan(...interface{}) error }) (*models.TrackedSource, error) {
	var s models.TrackedSource
	err := row.Scan(
		&s.ID, &s.ProductID, &s.Identifier, &s.ParserKind, &s.ScraperID, &s.RegionScope,
		&s.StoreDomain, &s.StoreToken, &s.CurrentPrice, &s.CurrentCurrency,
		&s.ConsecutiveFailures, &s.LastError, &s.LastScrapedAt, &s.AffiliateOverride,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSourceByID returns a tracked source by ID
func (r *SourceRepository) GetSourceByID(id int) (*models.TrackedSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM tracked_sources WHERE id = $1 AND is_active = true`

	source, err := scanSource(database.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("source not found")
		}
		return nil, fmt.Errorf("failed to get source: %v", err)
	}
	return source, nil
}

// GetSourcesByProduct returns all active sources tracking one product
func (r *SourceRepository) GetSourcesByProduct(productID int) ([]models.TrackedSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM tracked_sources WHERE product_id = $1 AND is_active = true ORDER BY id`

	rows, err := database.DB.Query(query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %v", err)
	}
	defer rows.Close()

	var sources []models.TrackedSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %v", err)
		}
		sources = append(sources, *source)
	}
	return sources, nil
}

// MarkScrapeSuccess updates a source's mutable fields after a successful scrape
func (r *SourceRepository) MarkScrapeSuccess(id int, price float64, currency string) error {
	query := `
		UPDATE tracked_sources
		SET current_price = $2, current_currency = $3, consecutive_failures = 0, last_error = NULL,
			last_scraped_at = $4, updated_at = $4
		WHERE id = $1
	`

	_, err := database.DB.Exec(query, id, price, currency, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark scrape success: %v", err)
	}
	return nil
}

// MarkScrapeFailure bumps the failure counter and records the error text
func (r *SourceRepository) MarkScrapeFailure(id int, errText string) error {
	query := `
		UPDATE tracked_sources
		SET consecutive_failures = consecutive_failures + 1, last_error = $2,
			last_scraped_at = $3, updated_at = $3
		WHERE id = $1
	`

	_, err := database.DB.Exec(query, id, errText, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark scrape failure: %v", err)
	}
	return nil
}

// ClearFailuresForScraper zeroes failure counters and last-error text on every
// source owned by a scraper. Called by the health tracker on a health reset.
func (r *SourceRepository) ClearFailuresForScraper(scraperID int) error {
	query := `
		UPDATE tracked_sources
		SET consecutive_failures = 0, last_error = NULL, updated_at = $2
		WHERE scraper_id = $1
	`

	_, err := database.DB.Exec(query, scraperID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clear source failures: %v", err)
	}
	return nil
}
