package model

import "time"

// ScrapeRun statuses. A run is terminal once its status leaves RunStatusRunning;
// only the orchestrator mutates a run after creation.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// Trigger modes recorded on a run.
const (
	TriggerScheduled = "SCHEDULED"
	TriggerManual    = "MANUAL"
)

// ScrapeRun represents one execution of the scrape orchestrator for a tenant.
// It aggregates the outcome of every dispatched theater job: how many price
// records were captured and a human-readable summary of per-target failures.
//
// Fields:
//
//	ID             – primary key identifier.
//	TenantID       – owning tenant; runs never mix across tenants.
//	StartedAt      – when the orchestrator dispatched the run.
//	FinishedAt     – when the last job completed (nil while running).
//	TriggerMode    – SCHEDULED or MANUAL.
//	Status         – RUNNING, COMPLETED or FAILED.
//	RecordsScraped – total price observations appended across all jobs.
//	ErrorSummary   – aggregated per-target failure lines; empty on a clean run.
type ScrapeRun struct {
	ID             uint64     // scrape_runs.id
	TenantID       uint64     // scrape_runs.tenant_id
	StartedAt      time.Time  // scrape_runs.started_at
	FinishedAt     *time.Time // scrape_runs.finished_at
	TriggerMode    string     // scrape_runs.trigger_mode
	Status         string     // scrape_runs.status
	RecordsScraped int        // scrape_runs.records_scraped
	ErrorSummary   string     // scrape_runs.error_summary
}
