// This file reads per-tenant alert configuration. The table is owned by an
// external configuration collaborator; the engine never writes it. A missing
// row is reported with ErrAlertConfigNotFound so the detector can fall back
// to engine-wide defaults instead of failing.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// ErrAlertConfigNotFound indicates the tenant has no configuration row.
var ErrAlertConfigNotFound = errors.New("alert configuration not found")

// AlertConfigRepo reads alert configurations.
type AlertConfigRepo struct {
	db *sql.DB
}

// NewAlertConfigRepo constructs an AlertConfigRepo with the given DB handle.
func NewAlertConfigRepo(db *sql.DB) *AlertConfigRepo {
	return &AlertConfigRepo{db: db}
}

// Get retrieves the tenant's thresholds and toggles.
func (r *AlertConfigRepo) Get(ctx context.Context, tenantID uint64) (*model.AlertConfiguration, error) {
	const q = `SELECT tenant_id, min_percent, min_amount_cents,
	           increase_enabled, decrease_enabled, new_offering_enabled,
	           discontinued_enabled, significant_enabled,
	           theater_filter, ticket_type_filter
	           FROM alert_configurations WHERE tenant_id = ?`
	var c model.AlertConfiguration
	var theaterFilter, ticketFilter sql.NullString
	err := r.db.QueryRowContext(ctx, q, tenantID).Scan(
		&c.TenantID, &c.MinPercent, &c.MinAmountCents,
		&c.IncreaseEnabled, &c.DecreaseEnabled, &c.NewOfferingEnabled,
		&c.DiscontinuedEnab, &c.SignificantEnabled,
		&theaterFilter, &ticketFilter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, err
	}
	c.TheaterFilter = theaterFilter.String
	c.TicketTypeFilter = ticketFilter.String
	return &c, nil
}
