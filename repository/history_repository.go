package repository

import (
	"fmt"
	"time"

	"dealtrack/database"
	"dealtrack/models"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// AddSnapshot appends one immutable price snapshot for a source
func (r *HistoryRepository) AddSnapshot(sourceID int, price float64, currency, status string) error {
	query := `
		INSERT INTO price_history (source_id, price, currency, status, checked_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`

	_, err := database.DB.Exec(query, sourceID, price, currency, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add price history: %v", err)
	}
	return nil
}

// GetHistoryBySource returns snapshots for a source, newest first
func (r *HistoryRepository) GetHistoryBySource(sourceID int, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = 100 // default limit
	}

	query := `
		SELECT id, source_id, price, currency, status, checked_at
		FROM price_history
		WHERE source_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`

	rows, err := database.DB.Query(query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %v", err)
	}
	defer rows.Close()

	var history []models.PriceHistory
	for rows.Next() {
		var entry models.PriceHistory
		err := rows.Scan(&entry.ID, &entry.SourceID, &entry.Price, &entry.Currency, &entry.Status, &entry.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history: %v", err)
		}
		history = append(history, entry)
	}
	return history, nil
}

// GetSummaryBySource returns min/max/avg over a source's snapshots
func (r *HistoryRepository) GetSummaryBySource(sourceID int) (*models.PriceSummary, error) {
	query := `
		SELECT COALESCE(MIN(price), 0), COALESCE(MAX(price), 0), COALESCE(AVG(price), 0), COUNT(*)
		FROM price_history
		WHERE source_id = $1
	`

	var summary models.PriceSummary
	err := database.DB.QueryRow(query, sourceID).Scan(&summary.Min, &summary.Max, &summary.Avg, &summary.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to get price summary: %v", err)
	}
	return &summary, nil
}
