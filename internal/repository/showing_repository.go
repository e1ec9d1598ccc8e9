// This file manages showings. A showing's identity key is
// (tenant, play date, theater, film, showtime, format); UpsertTx relies on
// the matching unique index so two jobs racing on the same screening resolve
// inside the database instead of a read-then-write race.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrShowingNotFound indicates that a showing was not located in the DB.
var ErrShowingNotFound = errors.New("showing not found")

// ShowingRepo manages persistence for showings.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo {
	return &ShowingRepo{db: db}
}

// DB exposes the underlying sql.DB. It allows callers to begin transactions
// spanning multiple repositories, which the ingestion store uses to keep one
// job's batch atomic.
func (r *ShowingRepo) DB() *sql.DB {
	return r.db
}

// UpsertTx inserts the showing or, when the identity key already exists,
// resolves to the existing row without modifying it. Either way s.ID is
// populated with the stable row id so price observations can reference it
// across runs.
//
// ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id) is the MySQL idiom for an
// atomic "insert or fetch id": the duplicate branch touches only the id
// pseudo-assignment, leaving the row itself untouched, and LastInsertId then
// reports the surviving row's id for both branches.
func (r *ShowingRepo) UpsertTx(ctx context.Context, tx *sql.Tx, s *model.Showing) error {
	const q = `INSERT INTO showings
	           (tenant_id, play_date, theater_name, film_title, showtime, format, is_plf, daypart)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), updated_at = CURRENT_TIMESTAMP`
	res, err := tx.ExecContext(ctx, q,
		s.TenantID, s.PlayDate, s.TheaterName, s.FilmTitle, s.Showtime, s.Format, s.IsPLF, s.Daypart)
	if err != nil {
		if isDuplicateKey(err) {
			// The upsert statement cannot itself raise ER_DUP_ENTRY on the
			// identity key; seeing one means the schema's unique index does
			// not match the code's idea of the key. Surface loudly.
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// KnownFilmTitles returns the distinct film titles the tenant has ingested,
// used by the extractor as the known-film vocabulary for tolerant matching.
func (r *ShowingRepo) KnownFilmTitles(ctx context.Context, tenantID uint64) ([]string, error) {
	const q = `SELECT DISTINCT film_title FROM showings WHERE tenant_id = ? ORDER BY film_title ASC`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return titles, nil
}

// ShowingQuery carries the optional filters for List. Zero values mean "no
// filter"; dates are inclusive "2006-01-02" strings.
type ShowingQuery struct {
	Theater    string
	Film       string
	DateFrom   string
	DateTo     string
	TicketType string // filters to showings having at least one observation of this type
	Limit      int
}

const showingCols = `s.id, s.tenant_id, s.play_date, s.theater_name, s.film_title,
	s.showtime, s.format, s.is_plf, s.daypart, s.created_at, s.updated_at`

// List returns showings for the tenant matching the query, ordered by play
// date then showtime. It powers the reporting read interface.
func (r *ShowingRepo) List(ctx context.Context, tenantID uint64, q ShowingQuery) ([]model.Showing, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + showingCols + ` FROM showings s WHERE s.tenant_id = ?`)
	args := []any{tenantID}
	if q.Theater != "" {
		sb.WriteString(` AND s.theater_name = ?`)
		args = append(args, q.Theater)
	}
	if q.Film != "" {
		sb.WriteString(` AND s.film_title = ?`)
		args = append(args, q.Film)
	}
	if q.DateFrom != "" {
		sb.WriteString(` AND s.play_date >= ?`)
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		sb.WriteString(` AND s.play_date <= ?`)
		args = append(args, q.DateTo)
	}
	if q.TicketType != "" {
		sb.WriteString(` AND EXISTS (SELECT 1 FROM price_observations po
		                 WHERE po.showing_id = s.id AND po.ticket_type = ?)`)
		args = append(args, q.TicketType)
	}
	sb.WriteString(` ORDER BY s.play_date ASC, s.showtime ASC LIMIT ?`)
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Showing
	for rows.Next() {
		var s model.Showing
		if err := rows.Scan(&s.ID, &s.TenantID, &s.PlayDate, &s.TheaterName, &s.FilmTitle,
			&s.Showtime, &s.Format, &s.IsPLF, &s.Daypart, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves one showing scoped to the tenant. It returns
// ErrShowingNotFound when there is no matching row.
func (r *ShowingRepo) GetByID(ctx context.Context, tenantID, id uint64) (*model.Showing, error) {
	const q = `SELECT ` + showingCols + ` FROM showings s WHERE s.id = ? AND s.tenant_id = ?`
	var s model.Showing
	err := r.db.QueryRowContext(ctx, q, id, tenantID).Scan(
		&s.ID, &s.TenantID, &s.PlayDate, &s.TheaterName, &s.FilmTitle,
		&s.Showtime, &s.Format, &s.IsPLF, &s.Daypart, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowingNotFound
		}
		return nil, err
	}
	return &s, nil
}
