package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"dealtrack/health"
	"dealtrack/models"
	"dealtrack/parser"
	"dealtrack/repository"
)

const maxLoggedError = 512

// RefreshService runs one tracked-source refresh end to end: parser dispatch,
// snapshot persistence, per-attempt logging, and the health feed. When a
// refresh runs is the external scheduler's business; this is only the entry
// point it calls.
type RefreshService struct {
	sources     *repository.SourceRepository
	scraperRepo *repository.ScraperRepository
	history     *repository.HistoryRepository
	logs        *repository.LogRepository
	tracker     *health.Tracker
	deps        parser.Deps
}

func NewRefreshService(sources *repository.SourceRepository, scrapers *repository.ScraperRepository, history *repository.HistoryRepository, logs *repository.LogRepository, tracker *health.Tracker, deps parser.Deps) *RefreshService {
	return &RefreshService{
		sources:     sources,
		scraperRepo: scrapers,
		history:     history,
		logs:        logs,
		tracker:     tracker,
		deps:        deps,
	}
}

// RefreshSource refreshes one tracked source. The call blocks through pacing,
// fetch, and retries; it must run on a background worker, never on a
// request-serving path. The returned result carries whatever was extracted
// even when err is non-nil.
func (s *RefreshService) RefreshSource(ctx context.Context, sourceID int) (*parser.Result, error) {
	source, err := s.sources.GetSourceByID(sourceID)
	if err != nil {
		return nil, err
	}
	if !source.IsActive {
		return nil, fmt.Errorf("source %d is not active", sourceID)
	}

	var scraper *models.Scraper
	if source.IsScraperBacked() {
		scraper, err = s.scraperRepo.GetScraperByID(int(source.ScraperID.Int64))
		if err != nil {
			return nil, err
		}
	}

	p, err := parser.New(source.ParserKind, scraper, s.deps)
	if err != nil {
		s.recordFailure(source, nil, err, 0)
		return nil, err
	}

	start := time.Now()
	result, parseErr := p.Parse(ctx, source)
	duration := time.Since(start)

	if parseErr != nil {
		s.recordFailure(source, result, parseErr, duration)
		return result, parseErr
	}

	s.recordSuccess(source, result, duration)
	return result, nil
}

func (s *RefreshService) recordSuccess(source *models.TrackedSource, result *parser.Result, duration time.Duration) {
	s.writeLog(source, result, true, "", duration)

	if result.Price != nil {
		if err := s.sources.MarkScrapeSuccess(source.ID, *result.Price, result.Currency); err != nil {
			log.Printf("Failed to record success for source %d: %v", source.ID, err)
		}
		if err := s.history.AddSnapshot(source.ID, *result.Price, result.Currency, result.Status); err != nil {
			log.Printf("Failed to add snapshot for source %d: %v", source.ID, err)
		}
	}

	if source.IsScraperBacked() && s.tracker != nil {
		if err := s.tracker.RecordSuccess(int(source.ScraperID.Int64)); err != nil {
			log.Printf("Failed to update health for scraper %d: %v", source.ScraperID.Int64, err)
		}
	}
}

func (s *RefreshService) recordFailure(source *models.TrackedSource, result *parser.Result, parseErr error, duration time.Duration) {
	errText := truncateError(parseErr)
	s.writeLog(source, result, false, errText, duration)

	if err := s.sources.MarkScrapeFailure(source.ID, errText); err != nil {
		log.Printf("Failed to record failure for source %d: %v", source.ID, err)
	}

	if source.IsScraperBacked() && s.tracker != nil {
		if err := s.tracker.RecordFailure(int(source.ScraperID.Int64)); err != nil {
			log.Printf("Failed to update health for scraper %d: %v", source.ScraperID.Int64, err)
		}
	}
}

// writeLog appends one diagnostic row per attempt. Logging never blocks the
// refresh outcome; a failed insert is reported and dropped.
func (s *RefreshService) writeLog(source *models.TrackedSource, result *parser.Result, success bool, errText string, duration time.Duration) {
	entry := &models.ScraperLog{
		SourceID:   sql.NullInt64{Int64: int64(source.ID), Valid: true},
		ScraperID:  source.ScraperID,
		Success:    success,
		DurationMs: duration.Milliseconds(),
	}
	if errText != "" {
		entry.ErrorText = sql.NullString{String: errText, Valid: true}
	}
	if result != nil {
		if payload, err := json.Marshal(result); err == nil {
			entry.Payload = sql.NullString{String: string(payload), Valid: true}
		}
		if len(result.Trace) > 0 {
			if trace, err := json.Marshal(result.Trace); err == nil {
				entry.Trace = sql.NullString{String: string(trace), Valid: true}
			}
		}
	}

	if err := s.logs.AddLog(entry); err != nil {
		log.Printf("Failed to write scraper log for source %d: %v", source.ID, err)
	}
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxLoggedError {
		msg = msg[:maxLoggedError] + "..."
	}
	return msg
}
