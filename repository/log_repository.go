package repository

import (
	"fmt"
	"time"

	"dealtrack/database"
	"dealtrack/models"
)

type LogRepository struct{}

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

// AddLog appends one per-attempt log record
func (r *LogRepository) AddLog(entry *models.ScraperLog) error {
	query := `
		INSERT INTO scraper_logs (scraper_id, source_id, success, payload, trace, error_text, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := database.DB.Exec(query,
		entry.ScraperID, entry.SourceID, entry.Success,
		entry.Payload, entry.Trace, entry.ErrorText, entry.DurationMs, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to add scraper log: %v", err)
	}
	return nil
}

// PurgeOldFailures removes a scraper's failure rows older than the cutoff
// while keeping recent failures and all successes.
func (r *LogRepository) PurgeOldFailures(scraperID int, cutoff time.Time) (int64, error) {
	query := `DELETE FROM scraper_logs WHERE scraper_id = $1 AND success = false AND created_at < $2`

	result, err := database.DB.Exec(query, scraperID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old failure logs: %v", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// PurgeLogsBefore removes all log rows older than the cutoff, any scraper.
// Used by the maintenance sweeper, not by health resets.
func (r *LogRepository) PurgeLogsBefore(cutoff time.Time) (int64, error) {
	query := `DELETE FROM scraper_logs WHERE created_at < $1`

	result, err := database.DB.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old logs: %v", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// TrailingSuccessRate returns the success rate and attempt count over a
// scraper's most recent attempts. A derived read-only health indicator.
func (r *LogRepository) TrailingSuccessRate(scraperID int, window int) (float64, int, error) {
	if window <= 0 {
		window = 50
	}

	query := `
		SELECT COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0), COUNT(*)
		FROM (
			SELECT success FROM scraper_logs
			WHERE scraper_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
	`

	var rate float64
	var count int
	err := database.DB.QueryRow(query, scraperID, window).Scan(&rate, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute trailing success rate: %v", err)
	}
	return rate, count, nil
}
