// This file manages price observations, the append-only price history. It
// also answers the two history questions the change detector asks: "what was
// the latest price for this pricing key before the current run?" and "which
// pricing keys did the previous scrape of this theater/date observe?".
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// PriorPrice is the detector's view of the most recent earlier observation
// for a pricing key.
type PriorPrice struct {
	PriceCents int64
	RunID      uint64
}

// ObservationRepo manages persistence for price observations.
type ObservationRepo struct {
	db *sql.DB
}

// NewObservationRepo constructs an ObservationRepo with the given DB handle.
func NewObservationRepo(db *sql.DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

// InsertTx appends one observation inside the caller's transaction. There is
// deliberately no upsert variant: history rows are never updated, a
// reconfirmed unchanged price still gets its own row.
func (r *ObservationRepo) InsertTx(ctx context.Context, tx *sql.Tx, o *model.PriceObservation) error {
	const q = `INSERT INTO price_observations
	           (tenant_id, showing_id, run_id, ticket_type, price_cents, observed_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		o.TenantID, o.ShowingID, o.RunID, o.TicketType, o.PriceCents, o.ObservedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// ListByShowing returns the full price history for one showing, oldest first.
func (r *ObservationRepo) ListByShowing(ctx context.Context, tenantID, showingID uint64) ([]model.PriceObservation, error) {
	const q = `SELECT id, tenant_id, showing_id, run_id, ticket_type, price_cents, observed_at
	           FROM price_observations
	           WHERE tenant_id = ? AND showing_id = ?
	           ORDER BY observed_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, tenantID, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		if err := rows.Scan(&o.ID, &o.TenantID, &o.ShowingID, &o.RunID,
			&o.TicketType, &o.PriceCents, &o.ObservedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestPrior returns the most recent observation for the pricing key made by
// any run other than excludeRunID, or nil when the key has never been
// observed before. Ordering is by observation id, not wall-clock arrival of
// jobs, so out-of-order job completion cannot flip which observation counts
// as "prior".
func (r *ObservationRepo) LatestPrior(ctx context.Context, tenantID uint64, key model.PricingKey, excludeRunID uint64) (*PriorPrice, error) {
	const q = `SELECT po.price_cents, po.run_id
	           FROM price_observations po
	           JOIN showings s ON s.id = po.showing_id
	           WHERE po.tenant_id = ? AND s.theater_name = ? AND po.ticket_type = ? AND s.format = ?
	             AND po.run_id <> ?
	           ORDER BY po.id DESC
	           LIMIT 1`
	var p PriorPrice
	err := r.db.QueryRowContext(ctx, q,
		tenantID, key.TheaterName, key.TicketType, key.Format, excludeRunID).
		Scan(&p.PriceCents, &p.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// PreviousRunKeySet returns the pricing keys (with their last prices) that
// the most recent scrape before beforeRunID observed for the given theater
// and play date. The second return value is false when no earlier scrape of
// that theater/date exists, which callers use to tell "first scrape ever"
// apart from "previously observed".
func (r *ObservationRepo) PreviousRunKeySet(ctx context.Context, tenantID uint64, theater, playDate string, beforeRunID uint64) (map[model.PricingKey]int64, bool, error) {
	const prevQ = `SELECT MAX(po.run_id)
	               FROM price_observations po
	               JOIN showings s ON s.id = po.showing_id
	               WHERE po.tenant_id = ? AND s.theater_name = ? AND s.play_date = ?
	                 AND po.run_id < ?`
	var prevRun sql.NullInt64
	if err := r.db.QueryRowContext(ctx, prevQ, tenantID, theater, playDate, beforeRunID).Scan(&prevRun); err != nil {
		return nil, false, err
	}
	if !prevRun.Valid {
		return nil, false, nil
	}

	const keysQ = `SELECT po.ticket_type, s.format, po.price_cents
	               FROM price_observations po
	               JOIN showings s ON s.id = po.showing_id
	               WHERE po.tenant_id = ? AND po.run_id = ? AND s.theater_name = ? AND s.play_date = ?
	               ORDER BY po.id ASC`
	rows, err := r.db.QueryContext(ctx, keysQ, tenantID, prevRun.Int64, theater, playDate)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	keys := make(map[model.PricingKey]int64)
	for rows.Next() {
		var ticketType, format string
		var price int64
		if err := rows.Scan(&ticketType, &format, &price); err != nil {
			return nil, false, err
		}
		// Later rows win so the map holds the last price per key.
		keys[model.PricingKey{TheaterName: theater, TicketType: ticketType, Format: format}] = price
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}
