package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// InitDatabase initializes the database connection
func InitDatabase() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}

	log.Println("Successfully connected to database")
	return nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scrapers (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			domain TEXT NOT NULL,
			regions TEXT[] NOT NULL DEFAULT '{}',
			link_template TEXT,
			default_currency VARCHAR(3) NOT NULL DEFAULT 'USD',
			fetch_mode VARCHAR(10) NOT NULL DEFAULT 'http' CHECK (fetch_mode IN ('http', 'browser')),
			use_metadata_fallback BOOLEAN DEFAULT TRUE,
			consecutive_successes INTEGER DEFAULT 0,
			health_reset_at TIMESTAMP,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scraper_rules (
			id SERIAL PRIMARY KEY,
			scraper_id INTEGER REFERENCES scrapers(id) ON DELETE CASCADE,
			field_type VARCHAR(10) NOT NULL CHECK (field_type IN ('price', 'status', 'shipping')),
			extraction_mode VARCHAR(12) NOT NULL CHECK (extraction_mode IN ('query', 'query_regex', 'css', 'json_path')),
			selector TEXT NOT NULL,
			attribute TEXT,
			regex TEXT,
			fallback_regex TEXT[] NOT NULL DEFAULT '{}',
			priority INTEGER NOT NULL DEFAULT 0,
			true_values TEXT[] NOT NULL DEFAULT '{}',
			trim_value BOOLEAN DEFAULT TRUE,
			strip_tokens TEXT[] NOT NULL DEFAULT '{}',
			replace_pattern TEXT,
			replace_with TEXT,
			is_active BOOLEAN DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS tracked_sources (
			id SERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL,
			identifier TEXT NOT NULL,
			parser_kind VARCHAR(20) NOT NULL CHECK (parser_kind IN ('amazon_api', 'shopify_storefront', 'scraper')),
			scraper_id INTEGER REFERENCES scrapers(id) ON DELETE SET NULL,
			region_scope VARCHAR(5) NOT NULL DEFAULT '',
			store_domain TEXT,
			store_token TEXT,
			current_price DECIMAL(10,2),
			current_currency VARCHAR(3),
			consecutive_failures INTEGER DEFAULT 0,
			last_error TEXT,
			last_scraped_at TIMESTAMP,
			affiliate_override TEXT,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id SERIAL PRIMARY KEY,
			source_id INTEGER REFERENCES tracked_sources(id) ON DELETE CASCADE,
			price DECIMAL(10,2) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'USD',
			status VARCHAR(20),
			checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scraper_logs (
			id BIGSERIAL PRIMARY KEY,
			scraper_id INTEGER REFERENCES scrapers(id) ON DELETE CASCADE,
			source_id INTEGER REFERENCES tracked_sources(id) ON DELETE CASCADE,
			success BOOLEAN NOT NULL,
			payload TEXT,
			trace TEXT,
			error_text TEXT,
			duration_ms BIGINT DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sources_product ON tracked_sources (product_id) WHERE is_active = TRUE`,
		`CREATE INDEX IF NOT EXISTS idx_sources_scraper ON tracked_sources (scraper_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_source_time ON price_history (source_id, checked_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_scraper_time ON scraper_logs (scraper_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_scraper ON scraper_rules (scraper_id, field_type, priority)`,
	}

	for _, query := range queries {
		_, err := DB.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
