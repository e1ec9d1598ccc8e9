// This file manages the two curation queues: film titles and ticket-type
// labels the extractor could not normalize. Rows are upserted with an
// occurrence increment so the queue stays one row per distinct label.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// UnmatchedRepo manages persistence for the unmatched-item queues.
type UnmatchedRepo struct {
	db *sql.DB
}

// NewUnmatchedRepo constructs an UnmatchedRepo with the given DB handle.
func NewUnmatchedRepo(db *sql.DB) *UnmatchedRepo {
	return &UnmatchedRepo{db: db}
}

// RecordFilmTx upserts one unmatched film title inside the caller's
// transaction, bumping last_seen and the occurrence counter on repeats.
func (r *UnmatchedRepo) RecordFilmTx(ctx context.Context, tx *sql.Tx, tenantID uint64, rawTitle string, seenAt time.Time) error {
	const q = `INSERT INTO unmatched_films (tenant_id, raw_title, first_seen, last_seen, occurrences)
	           VALUES (?, ?, ?, ?, 1)
	           ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen), occurrences = occurrences + 1`
	_, err := tx.ExecContext(ctx, q, tenantID, rawTitle, seenAt, seenAt)
	return err
}

// RecordTicketTypeTx upserts one unmatched ticket-type label inside the
// caller's transaction.
func (r *UnmatchedRepo) RecordTicketTypeTx(ctx context.Context, tx *sql.Tx, tenantID uint64, label string, seenAt time.Time) error {
	const q = `INSERT INTO unmatched_ticket_types (tenant_id, label, first_seen, last_seen, occurrences)
	           VALUES (?, ?, ?, ?, 1)
	           ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen), occurrences = occurrences + 1`
	_, err := tx.ExecContext(ctx, q, tenantID, label, seenAt, seenAt)
	return err
}

// ListFilms returns the tenant's unmatched-film queue, most occurrences first.
func (r *UnmatchedRepo) ListFilms(ctx context.Context, tenantID uint64) ([]model.UnmatchedFilm, error) {
	const q = `SELECT id, tenant_id, raw_title, first_seen, last_seen, occurrences
	           FROM unmatched_films WHERE tenant_id = ?
	           ORDER BY occurrences DESC, last_seen DESC`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.UnmatchedFilm
	for rows.Next() {
		var f model.UnmatchedFilm
		if err := rows.Scan(&f.ID, &f.TenantID, &f.RawTitle, &f.FirstSeen, &f.LastSeen, &f.Occurrences); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTicketTypes returns the tenant's unmatched-ticket-type queue.
func (r *UnmatchedRepo) ListTicketTypes(ctx context.Context, tenantID uint64) ([]model.UnmatchedTicketType, error) {
	const q = `SELECT id, tenant_id, label, first_seen, last_seen, occurrences
	           FROM unmatched_ticket_types WHERE tenant_id = ?
	           ORDER BY occurrences DESC, last_seen DESC`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.UnmatchedTicketType
	for rows.Next() {
		var t model.UnmatchedTicketType
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Label, &t.FirstSeen, &t.LastSeen, &t.Occurrences); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
