package health

import (
	"fmt"
	"log"
	"time"
)

const (
	// ResetThreshold is the consecutive-success streak that triggers a
	// self-healing reset.
	ResetThreshold = 10
	// FailureRetention is how far back failure logs survive a reset.
	FailureRetention = 24 * time.Hour
)

// ScraperStore is the slice of scraper persistence the tracker drives.
type ScraperStore interface {
	IncrementSuccessStreak(scraperID int) (int, error)
	ResetSuccessStreak(scraperID int) error
	MarkHealthReset(scraperID int, at time.Time) error
}

// LogStore purges stale failure diagnostics on a reset.
type LogStore interface {
	PurgeOldFailures(scraperID int, cutoff time.Time) (int64, error)
}

// SourceStore clears per-source failure streaks on a reset.
type SourceStore interface {
	ClearFailuresForScraper(scraperID int) error
}

// Tracker counts consecutive successes per scraper and performs the
// self-healing reset. Counters live in the persistent store, so tracking is
// correct across multiple worker processes.
type Tracker struct {
	scrapers ScraperStore
	logs     LogStore
	sources  SourceStore
}

// NewTracker creates a health tracker over the given stores.
func NewTracker(scrapers ScraperStore, logs LogStore, sources SourceStore) *Tracker {
	return &Tracker{
		scrapers: scrapers,
		logs:     logs,
		sources:  sources,
	}
}

// RecordSuccess bumps the scraper's streak. On reaching the threshold it
// zeroes the counter, stamps the reset time, purges failure logs older than
// the retention window and clears failure counters on every owned source,
// so a recovered scraper stops being penalized by historical streaks while
// near-term diagnostics survive.
func (t *Tracker) RecordSuccess(scraperID int) error {
	streak, err := t.scrapers.IncrementSuccessStreak(scraperID)
	if err != nil {
		return err
	}
	if streak < ResetThreshold {
		return nil
	}

	now := time.Now()
	if err := t.scrapers.MarkHealthReset(scraperID, now); err != nil {
		return fmt.Errorf("health reset failed for scraper %d: %v", scraperID, err)
	}

	purged, err := t.logs.PurgeOldFailures(scraperID, now.Add(-FailureRetention))
	if err != nil {
		log.Printf("Failed to purge old failure logs for scraper %d: %v", scraperID, err)
	}

	if err := t.sources.ClearFailuresForScraper(scraperID); err != nil {
		log.Printf("Failed to clear source failures for scraper %d: %v", scraperID, err)
	}

	log.Printf("Health reset for scraper %d after %d consecutive successes (purged %d stale failure logs)", scraperID, streak, purged)
	return nil
}

// RecordFailure resets the scraper's success streak to zero.
func (t *Tracker) RecordFailure(scraperID int) error {
	return t.scrapers.ResetSuccessStreak(scraperID)
}
