// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/cinewatch/showtime-engine/internal/model"
)

// PriceAlertEvent is published when the detector emits an alert. It carries
// enough information for downstream consumers to notify or log without
// querying the primary database. Nil prices follow the alert semantics:
// OldPriceCents is nil for new offerings, NewPriceCents for discontinued
// ones.
type PriceAlertEvent struct {
	AlertID       uint64  `json:"alert_id"`
	TenantID      uint64  `json:"tenant_id"`
	TheaterName   string  `json:"theater_name"`
	FilmTitle     string  `json:"film_title,omitempty"`
	TicketType    string  `json:"ticket_type"`
	Format        string  `json:"format"`
	Kind          string  `json:"kind"`
	OldPriceCents *int64  `json:"old_price_cents,omitempty"`
	NewPriceCents *int64  `json:"new_price_cents,omitempty"`
	ChangePercent float64 `json:"change_percent"`
	TriggeredAt   string  `json:"triggered_at"`
}

// NewPriceAlertEvent builds the broker payload from a persisted alert.
func NewPriceAlertEvent(a *model.PriceAlert) PriceAlertEvent {
	return PriceAlertEvent{
		AlertID:       a.ID,
		TenantID:      a.TenantID,
		TheaterName:   a.TheaterName,
		FilmTitle:     a.FilmTitle,
		TicketType:    a.TicketType,
		Format:        a.Format,
		Kind:          a.Kind,
		OldPriceCents: a.OldPriceCents,
		NewPriceCents: a.NewPriceCents,
		ChangePercent: a.ChangePercent,
		TriggeredAt:   a.TriggeredAt.UTC().Format(time.RFC3339),
	}
}
