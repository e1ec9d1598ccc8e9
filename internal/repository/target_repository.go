// Package repository contains data access logic for the engine's aggregates.
// This file manages theater targets: the catalog of theaters the orchestrator
// scrapes. Targets are written by an external maintenance collaborator; the
// engine reads them and only updates the last-scrape bookkeeping columns.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrTargetNotFound indicates that a theater target was not located in the DB.
var ErrTargetNotFound = errors.New("theater target not found")

// TargetRepo manages persistence for theater targets.
type TargetRepo struct {
	db *sql.DB
}

// NewTargetRepo constructs a TargetRepo with the given DB handle.
func NewTargetRepo(db *sql.DB) *TargetRepo {
	return &TargetRepo{db: db}
}

const targetCols = `id, tenant_id, name, base_url, nav_config, locale,
	scrape_frequency_min, last_scraped_at, last_scrape_status, verified_at`

func scanTarget(row interface{ Scan(...any) error }) (*model.TheaterTarget, error) {
	var t model.TheaterTarget
	var lastScraped, verified sql.NullTime
	var lastStatus sql.NullString
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.BaseURL, &t.NavConfig, &t.Locale,
		&t.ScrapeFrequencyMin, &lastScraped, &lastStatus, &verified)
	if err != nil {
		return nil, err
	}
	if lastScraped.Valid {
		t.LastScrapedAt = &lastScraped.Time
	}
	if verified.Valid {
		t.VerifiedAt = &verified.Time
	}
	t.LastScrapeStatus = lastStatus.String
	return &t, nil
}

// ListByTenant returns every target registered for the tenant, ordered by
// name. When none exist it returns an empty slice and nil error.
func (r *TargetRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.TheaterTarget, error) {
	const q = `SELECT ` + targetCols + ` FROM theater_targets WHERE tenant_id = ? ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.TheaterTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByName retrieves one target by its per-tenant unique name. It returns
// ErrTargetNotFound when there is no matching row.
func (r *TargetRepo) GetByName(ctx context.Context, tenantID uint64, name string) (*model.TheaterTarget, error) {
	const q = `SELECT ` + targetCols + ` FROM theater_targets WHERE tenant_id = ? AND name = ?`
	t, err := scanTarget(r.db.QueryRowContext(ctx, q, tenantID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	return t, nil
}

// MarkScraped updates the last-scrape bookkeeping for one target. The write
// is scoped to the target's own row, so concurrent jobs never collide: each
// job updates only the target it scraped.
func (r *TargetRepo) MarkScraped(ctx context.Context, id uint64, at time.Time, status string) error {
	const q = `UPDATE theater_targets SET last_scraped_at = ?, last_scrape_status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, at, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Target rows can be retired by the maintenance collaborator while a
		// run is in flight; stale bookkeeping is not an error worth failing
		// the job over, but the caller may want to log it.
		return ErrTargetNotFound
	}
	return nil
}
