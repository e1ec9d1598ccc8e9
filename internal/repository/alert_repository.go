// This file manages price alerts. The engine only ever inserts and lists
// them; acknowledgement is performed by an external workflow against the same
// table.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrAlertNotFound indicates that an alert was not located in the DB.
var ErrAlertNotFound = errors.New("price alert not found")

// AlertRepo manages persistence for price alerts.
type AlertRepo struct {
	db *sql.DB
}

// NewAlertRepo constructs an AlertRepo with the given DB handle.
func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// Create inserts a new alert and assigns the generated ID back to the struct.
func (r *AlertRepo) Create(ctx context.Context, a *model.PriceAlert) error {
	const q = `INSERT INTO price_alerts
	           (tenant_id, theater_name, film_title, ticket_type, format, kind,
	            old_price_cents, new_price_cents, change_percent, triggered_at, acknowledged)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`
	res, err := r.db.ExecContext(ctx, q,
		a.TenantID, a.TheaterName, a.FilmTitle, a.TicketType, a.Format, a.Kind,
		a.OldPriceCents, a.NewPriceCents, a.ChangePercent, a.TriggeredAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// AlertQuery carries optional filters for List. Acknowledged nil means both
// states; dates are inclusive bounds on triggered_at.
type AlertQuery struct {
	Acknowledged *bool
	From         string
	To           string
	Limit        int
}

// List returns the tenant's alerts, newest first.
func (r *AlertRepo) List(ctx context.Context, tenantID uint64, q AlertQuery) ([]model.PriceAlert, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, tenant_id, theater_name, film_title, ticket_type, format, kind,
	                old_price_cents, new_price_cents, change_percent, triggered_at,
	                acknowledged, acknowledged_at
	                FROM price_alerts WHERE tenant_id = ?`)
	args := []any{tenantID}
	if q.Acknowledged != nil {
		sb.WriteString(` AND acknowledged = ?`)
		args = append(args, *q.Acknowledged)
	}
	if q.From != "" {
		sb.WriteString(` AND triggered_at >= ?`)
		args = append(args, q.From)
	}
	if q.To != "" {
		sb.WriteString(` AND triggered_at <= ?`)
		args = append(args, q.To)
	}
	sb.WriteString(` ORDER BY triggered_at DESC, id DESC LIMIT ?`)
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.PriceAlert
	for rows.Next() {
		var a model.PriceAlert
		var oldP, newP sql.NullInt64
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.TenantID, &a.TheaterName, &a.FilmTitle, &a.TicketType,
			&a.Format, &a.Kind, &oldP, &newP, &a.ChangePercent, &a.TriggeredAt,
			&a.Acknowledged, &ackAt); err != nil {
			return nil, err
		}
		if oldP.Valid {
			v := oldP.Int64
			a.OldPriceCents = &v
		}
		if newP.Valid {
			v := newP.Int64
			a.NewPriceCents = &v
		}
		if ackAt.Valid {
			a.AcknowledgedAt = &ackAt.Time
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
