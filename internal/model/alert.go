package model

import "time"

// Alert kinds emitted by the price-change detector.
const (
	AlertPriceIncrease     = "PRICE_INCREASE"
	AlertPriceDecrease     = "PRICE_DECREASE"
	AlertNewOffering       = "NEW_OFFERING"
	AlertDiscontinued      = "DISCONTINUED"
	AlertSignificantChange = "SIGNIFICANT_CHANGE"
)

// PricingKey is the tuple the detector tracks price history by. Showtime and
// play date are deliberately not part of the key: the detector compares the
// latest prior observation for the key regardless of which screening carried
// it, so out-of-order job completion cannot reorder a key's history.
type PricingKey struct {
	TheaterName string
	TicketType  string
	Format      string
}

// PriceAlert is a detected, significant price change. The engine creates an
// alert exactly once per qualifying transition and never mutates it afterwards;
// acknowledgement is owned by an external workflow.
//
// OldPriceCents is nil for NEW_OFFERING alerts and NewPriceCents is nil for
// DISCONTINUED alerts.
type PriceAlert struct {
	ID             uint64     // price_alerts.id
	TenantID       uint64     // price_alerts.tenant_id
	TheaterName    string     // price_alerts.theater_name
	FilmTitle      string     // price_alerts.film_title
	TicketType     string     // price_alerts.ticket_type
	Format         string     // price_alerts.format
	Kind           string     // price_alerts.kind
	OldPriceCents  *int64     // price_alerts.old_price_cents
	NewPriceCents  *int64     // price_alerts.new_price_cents
	ChangePercent  float64    // price_alerts.change_percent
	TriggeredAt    time.Time  // price_alerts.triggered_at
	Acknowledged   bool       // price_alerts.acknowledged
	AcknowledgedAt *time.Time // price_alerts.acknowledged_at
}

// AlertConfiguration holds a tenant's change-detection thresholds and toggles.
// It is owned by an external configuration collaborator and read-only to the
// engine. A tenant without a row gets DefaultAlertConfiguration.
type AlertConfiguration struct {
	TenantID           uint64  // alert_configurations.tenant_id
	MinPercent         float64 // alert_configurations.min_percent
	MinAmountCents     int64   // alert_configurations.min_amount_cents
	IncreaseEnabled    bool    // alert_configurations.increase_enabled
	DecreaseEnabled    bool    // alert_configurations.decrease_enabled
	NewOfferingEnabled bool    // alert_configurations.new_offering_enabled
	DiscontinuedEnab   bool    // alert_configurations.discontinued_enabled
	SignificantEnabled bool    // alert_configurations.significant_enabled
	TheaterFilter      string  // alert_configurations.theater_filter (csv, empty = all)
	TicketTypeFilter   string  // alert_configurations.ticket_type_filter (csv, empty = all)
}

// DefaultAlertConfiguration returns the engine-wide defaults applied when a
// tenant has no configuration row: 5% or $1.00, every alert kind enabled, no
// theater or ticket-type filters.
func DefaultAlertConfiguration(tenantID uint64) AlertConfiguration {
	return AlertConfiguration{
		TenantID:           tenantID,
		MinPercent:         5.0,
		MinAmountCents:     100,
		IncreaseEnabled:    true,
		DecreaseEnabled:    true,
		NewOfferingEnabled: true,
		DiscontinuedEnab:   true,
		SignificantEnabled: true,
	}
}
