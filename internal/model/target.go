package model

import "time"

// TheaterTarget identifies one theater within a remote showtime source and
// carries the navigation metadata needed to retrieve its listings. Targets are
// owned by an external maintenance collaborator; the engine only reads them
// and updates the last-scrape bookkeeping fields after each job.
//
// NavConfig is stored as a JSON blob (theater_targets.nav_config) and decoded
// by the page retriever; see retriever.NavConfig for the recognized keys.
type TheaterTarget struct {
	ID                 uint64     // theater_targets.id
	TenantID           uint64     // theater_targets.tenant_id
	Name               string     // theater_targets.name (unique per tenant)
	BaseURL            string     // theater_targets.base_url
	NavConfig          string     // theater_targets.nav_config (JSON)
	Locale             string     // theater_targets.locale, e.g. "en_US"
	ScrapeFrequencyMin int        // theater_targets.scrape_frequency_min; 0 = engine default
	LastScrapedAt      *time.Time // theater_targets.last_scraped_at
	LastScrapeStatus   string     // theater_targets.last_scrape_status ("ok", "failed", ...)
	VerifiedAt         *time.Time // theater_targets.verified_at (maintained externally)
}

// Due reports whether the target should be included in a scheduled run at the
// given instant. A target is due when it has never been scraped or its last
// scrape is older than its configured frequency (falling back to defaultFreq
// when the target does not set one).
func (t TheaterTarget) Due(now time.Time, defaultFreq time.Duration) bool {
	if t.LastScrapedAt == nil {
		return true
	}
	freq := defaultFreq
	if t.ScrapeFrequencyMin > 0 {
		freq = time.Duration(t.ScrapeFrequencyMin) * time.Minute
	}
	return now.Sub(*t.LastScrapedAt) >= freq
}
