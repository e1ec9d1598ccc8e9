package model

import "time"

// Dayparts derived from a showing's start time.
const (
	DaypartMatinee = "MATINEE"
	DaypartEvening = "EVENING"
	DaypartLate    = "LATE"
)

// Showing represents one screening instance at one theater on one date.
// The tuple (TenantID, PlayDate, TheaterName, FilmTitle, Showtime, Format) is
// unique and serves as the idempotency key for ingestion: re-scraping the same
// screening upserts into the existing row so price observations keep a stable
// showing reference across runs. Showings are never deleted by the engine.
//
// Fields:
//
//	ID          – primary key identifier, stable across re-ingestion.
//	TenantID    – owning tenant.
//	PlayDate    – calendar date of the screening ("2006-01-02").
//	TheaterName – theater as named in the target catalog.
//	FilmTitle   – canonical title when matched, verbatim source title otherwise.
//	Showtime    – 24h start time ("15:04").
//	Format      – presentation format label ("Standard", "IMAX", ...).
//	IsPLF       – premium-large-format flag derived from the format label.
//	Daypart     – coarse time-of-day bucket derived from Showtime.
type Showing struct {
	ID          uint64    // showings.id
	TenantID    uint64    // showings.tenant_id
	PlayDate    string    // showings.play_date
	TheaterName string    // showings.theater_name
	FilmTitle   string    // showings.film_title
	Showtime    string    // showings.showtime
	Format      string    // showings.format
	IsPLF       bool      // showings.is_plf
	Daypart     string    // showings.daypart
	CreatedAt   time.Time // showings.created_at
	UpdatedAt   time.Time // showings.updated_at
}

// PriceObservation records one ticket price for one showing at one point in
// time. Observations are append-only: every scrape that still finds the
// showing on sale writes a new row, even when the price is unchanged, so the
// full price history (including reconfirmations) is preserved.
type PriceObservation struct {
	ID         uint64    // price_observations.id
	TenantID   uint64    // price_observations.tenant_id
	ShowingID  uint64    // price_observations.showing_id
	RunID      uint64    // price_observations.run_id
	TicketType string    // price_observations.ticket_type (canonical label)
	PriceCents int64     // price_observations.price_cents (non-negative)
	ObservedAt time.Time // price_observations.observed_at
}

// PriceCandidate is one not-yet-persisted ticket price extracted from a page.
type PriceCandidate struct {
	TicketType string
	PriceCents int64
}

// ShowingCandidate pairs an extracted showing with the ticket prices found in
// the same block. Candidates are what the extractor hands to the ingestion
// store.
type ShowingCandidate struct {
	Showing Showing
	Prices  []PriceCandidate
}
