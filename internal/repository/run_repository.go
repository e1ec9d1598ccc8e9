// This file manages scrape runs: one row per orchestrator execution. A run is
// created in RUNNING state at dispatch and finalized exactly once by the
// orchestrator; nothing else mutates it.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrRunNotFound indicates that a scrape run was not located in the DB.
var ErrRunNotFound = errors.New("scrape run not found")

// RunRepo manages persistence for scrape runs.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo constructs a RunRepo with the given DB handle.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts a new run in RUNNING state and assigns the generated ID back
// to the struct.
func (r *RunRepo) Create(ctx context.Context, run *model.ScrapeRun) error {
	const q = `INSERT INTO scrape_runs (tenant_id, started_at, trigger_mode, status)
	           VALUES (?, ?, ?, ?)`
	run.Status = model.RunStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q, run.TenantID, run.StartedAt, run.TriggerMode, run.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = uint64(id)
	return nil
}

// Finish finalizes a run: sets the terminal status, the aggregate counters
// and the finish timestamp. The WHERE clause guards on RUNNING so a run can
// only be finalized once.
func (r *RunRepo) Finish(ctx context.Context, run *model.ScrapeRun) error {
	const q = `UPDATE scrape_runs
	           SET status = ?, records_scraped = ?, error_summary = ?, finished_at = ?
	           WHERE id = ? AND status = ?`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q,
		run.Status, run.RecordsScraped, run.ErrorSummary, now,
		run.ID, model.RunStatusRunning)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	run.FinishedAt = &now
	return nil
}

const runCols = `id, tenant_id, started_at, finished_at, trigger_mode, status,
	records_scraped, error_summary`

func scanRun(row interface{ Scan(...any) error }) (*model.ScrapeRun, error) {
	var run model.ScrapeRun
	var finished sql.NullTime
	var summary sql.NullString
	err := row.Scan(&run.ID, &run.TenantID, &run.StartedAt, &finished,
		&run.TriggerMode, &run.Status, &run.RecordsScraped, &summary)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.ErrorSummary = summary.String
	return &run, nil
}

// GetByID retrieves a run scoped to the tenant. It returns ErrRunNotFound
// when there is no matching row.
func (r *RunRepo) GetByID(ctx context.Context, tenantID, id uint64) (*model.ScrapeRun, error) {
	const q = `SELECT ` + runCols + ` FROM scrape_runs WHERE id = ? AND tenant_id = ?`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListByTenant returns the tenant's run history, newest first, capped at
// limit rows (default 50 when limit is not positive).
func (r *RunRepo) ListByTenant(ctx context.Context, tenantID uint64, limit int) ([]model.ScrapeRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + runCols + ` FROM scrape_runs
	           WHERE tenant_id = ? ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
