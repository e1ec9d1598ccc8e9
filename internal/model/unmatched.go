package model

import "time"

// UnmatchedFilm accumulates source film titles the extractor could not match
// against the tenant's known-film list. Rows are upserted with an occurrence
// increment on repeat sightings and exist purely as a review queue for an
// external curation collaborator; they never block ingestion.
type UnmatchedFilm struct {
	ID          uint64    // unmatched_films.id
	TenantID    uint64    // unmatched_films.tenant_id
	RawTitle    string    // unmatched_films.raw_title (verbatim from source)
	FirstSeen   time.Time // unmatched_films.first_seen
	LastSeen    time.Time // unmatched_films.last_seen
	Occurrences int       // unmatched_films.occurrences
}

// UnmatchedTicketType accumulates ticket-type labels outside the canonical
// vocabulary, mirroring UnmatchedFilm.
type UnmatchedTicketType struct {
	ID          uint64    // unmatched_ticket_types.id
	TenantID    uint64    // unmatched_ticket_types.tenant_id
	Label       string    // unmatched_ticket_types.label (verbatim from source)
	FirstSeen   time.Time // unmatched_ticket_types.first_seen
	LastSeen    time.Time // unmatched_ticket_types.last_seen
	Occurrences int       // unmatched_ticket_types.occurrences
}
