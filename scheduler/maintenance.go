package scheduler

import (
	"log"
	"time"

	"dealtrack/repository"

	"github.com/robfig/cron/v3"
)

// Maintenance runs periodic housekeeping over the diagnostic log table.
// Scrape scheduling itself lives outside this process.
type Maintenance struct {
	cron      *cron.Cron
	logs      *repository.LogRepository
	retention time.Duration
}

func NewMaintenance(logs *repository.LogRepository, retention time.Duration) *Maintenance {
	return &Maintenance{
		cron:      cron.New(cron.WithSeconds()),
		logs:      logs,
		retention: retention,
	}
}

// Start schedules the retention sweep to run once a day at 03:00.
func (m *Maintenance) Start() {
	_, err := m.cron.AddFunc("0 0 3 * * *", m.sweepLogs)
	if err != nil {
		log.Printf("Failed to schedule log retention sweep: %v", err)
		return
	}

	// Also run immediately on startup
	go m.sweepLogs()

	m.cron.Start()
	log.Printf("Log retention sweep scheduled daily (retention %s)", m.retention)
}

// Stop stops the scheduled maintenance
func (m *Maintenance) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

func (m *Maintenance) sweepLogs() {
	cutoff := time.Now().Add(-m.retention)
	removed, err := m.logs.PurgeLogsBefore(cutoff)
	if err != nil {
		log.Printf("Log retention sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Log retention sweep removed %d rows older than %s", removed, cutoff.Format(time.RFC3339))
	}
}
