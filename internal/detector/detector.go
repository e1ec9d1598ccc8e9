// Package detector turns newly ingested price observations into alerts. It
// implements a small state machine per pricing key (tenant, theater, ticket
// type, format): the first observation establishes a baseline, later
// observations alert on threshold-crossing changes, and key sets are compared
// scrape-to-scrape to detect discontinued offerings. Emission is
// exactly-once per qualifying transition: a re-scrape that reconfirms the
// same price appends history but never re-alerts.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/queue"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// ConfigSource supplies per-tenant alert configuration.
// repository.AlertConfigRepo satisfies it.
type ConfigSource interface {
	Get(ctx context.Context, tenantID uint64) (*model.AlertConfiguration, error)
}

// History answers the detector's two questions about prior observations.
// repository.ObservationRepo satisfies it.
type History interface {
	LatestPrior(ctx context.Context, tenantID uint64, key model.PricingKey, excludeRunID uint64) (*repository.PriorPrice, error)
	PreviousRunKeySet(ctx context.Context, tenantID uint64, theater, playDate string, beforeRunID uint64) (map[model.PricingKey]int64, bool, error)
}

// AlertStore persists emitted alerts. repository.AlertRepo satisfies it.
type AlertStore interface {
	Create(ctx context.Context, a *model.PriceAlert) error
}

// Publisher pushes an alert event to the message broker. Optional; a nil
// publisher means alerts are only persisted.
type Publisher func(ctx context.Context, ev queue.PriceAlertEvent) error

// Report summarizes one evaluation pass.
type Report struct {
	AlertsEmitted int
	KeyFailures   int // keys whose evaluation failed and was isolated
}

// Detector evaluates price transitions for one theater/date at a time.
type Detector struct {
	configs ConfigSource
	history History
	alerts  AlertStore
	publish Publisher
}

// New constructs a Detector. publish may be nil.
func New(configs ConfigSource, history History, alerts AlertStore, publish Publisher) *Detector {
	return &Detector{configs: configs, history: history, alerts: alerts, publish: publish}
}

// Evaluate runs change detection for the observations one job just ingested
// for (theater, playDate). Failures on individual keys are logged and
// counted, never propagated: ingestion has already committed and must not be
// retroactively failed by detection.
func (d *Detector) Evaluate(ctx context.Context, run *model.ScrapeRun, theater, playDate string, observed []ingest.ObservedPrice) Report {
	var rep Report

	cfg := d.configFor(ctx, run.TenantID)
	if !inFilter(cfg.TheaterFilter, theater) {
		return rep
	}

	prevKeys, prevFound, err := d.history.PreviousRunKeySet(ctx, run.TenantID, theater, playDate, run.ID)
	if err != nil {
		// Without the previous key set we can still evaluate price deltas;
		// only new-offering and discontinued detection degrade.
		log.Printf("detector: previous key set for %s/%s: %v", theater, playDate, err)
		prevFound = false
	}

	// Collapse the batch to one (latest) price per pricing key; one run can
	// observe a key on several screenings.
	current := make(map[model.PricingKey]ingest.ObservedPrice, len(observed))
	var order []model.PricingKey
	for _, o := range observed {
		if _, seen := current[o.Key]; !seen {
			order = append(order, o.Key)
		}
		current[o.Key] = o
	}

	for _, key := range order {
		o := current[key]
		if !inFilter(cfg.TicketTypeFilter, key.TicketType) {
			continue
		}
		if err := d.evaluateKey(ctx, run, cfg, key, o, prevFound, &rep); err != nil {
			log.Printf("detector: key %s/%s/%s: %v", key.TheaterName, key.TicketType, key.Format, err)
			rep.KeyFailures++
		}
	}

	// Discontinued: keys the previous scrape of this theater/date observed
	// that this scrape did not, provided the theater/date still has showings
	// at all (an entirely empty day is a closure, not a discontinuation).
	if prevFound && len(observed) > 0 && cfg.DiscontinuedEnab {
		for key, lastPrice := range prevKeys {
			if _, still := current[key]; still {
				continue
			}
			if !inFilter(cfg.TicketTypeFilter, key.TicketType) {
				continue
			}
			old := lastPrice
			alert := &model.PriceAlert{
				TenantID:      run.TenantID,
				TheaterName:   key.TheaterName,
				TicketType:    key.TicketType,
				Format:        key.Format,
				Kind:          model.AlertDiscontinued,
				OldPriceCents: &old,
				TriggeredAt:   time.Now().UTC(),
			}
			if err := d.emit(ctx, alert); err != nil {
				log.Printf("detector: discontinued %s/%s/%s: %v", key.TheaterName, key.TicketType, key.Format, err)
				rep.KeyFailures++
				continue
			}
			rep.AlertsEmitted++
		}
	}
	return rep
}

// evaluateKey applies the transition rules for one pricing key.
func (d *Detector) evaluateKey(ctx context.Context, run *model.ScrapeRun, cfg model.AlertConfiguration, key model.PricingKey, o ingest.ObservedPrice, prevScrapeExists bool, rep *Report) error {
	prior, err := d.history.LatestPrior(ctx, run.TenantID, key, run.ID)
	if err != nil {
		return fmt.Errorf("latest prior: %w", err)
	}

	if prior == nil {
		// unseen -> has-prior-price. Only alert when this is genuinely a new
		// offering: the theater/date has been scraped before and this key was
		// not part of it. The tenant's very first scrape is a baseline.
		if !prevScrapeExists || !cfg.NewOfferingEnabled {
			return nil
		}
		newP := o.PriceCents
		alert := &model.PriceAlert{
			TenantID:      run.TenantID,
			TheaterName:   key.TheaterName,
			FilmTitle:     o.FilmTitle,
			TicketType:    key.TicketType,
			Format:        key.Format,
			Kind:          model.AlertNewOffering,
			NewPriceCents: &newP,
			TriggeredAt:   time.Now().UTC(),
		}
		if err := d.emit(ctx, alert); err != nil {
			return err
		}
		rep.AlertsEmitted++
		return nil
	}

	if o.PriceCents == prior.PriceCents {
		return nil // equal prices never emit
	}

	diff := o.PriceCents - prior.PriceCents
	pct := float64(diff) * 100 / float64(prior.PriceCents)
	pctCrossed := abs(pct) >= cfg.MinPercent
	amtCrossed := absInt(diff) >= cfg.MinAmountCents
	if !pctCrossed && !amtCrossed {
		return nil
	}

	kind := model.AlertPriceIncrease
	enabled := cfg.IncreaseEnabled
	if diff < 0 {
		kind = model.AlertPriceDecrease
		enabled = cfg.DecreaseEnabled
	}
	// A change crossing both thresholds at once is escalated to
	// SIGNIFICANT_CHANGE when the tenant has that kind enabled.
	if pctCrossed && amtCrossed && cfg.SignificantEnabled {
		kind = model.AlertSignificantChange
		enabled = true
	}
	if !enabled {
		return nil
	}

	oldP, newP := prior.PriceCents, o.PriceCents
	alert := &model.PriceAlert{
		TenantID:      run.TenantID,
		TheaterName:   key.TheaterName,
		FilmTitle:     o.FilmTitle,
		TicketType:    key.TicketType,
		Format:        key.Format,
		Kind:          kind,
		OldPriceCents: &oldP,
		NewPriceCents: &newP,
		ChangePercent: pct,
		TriggeredAt:   time.Now().UTC(),
	}
	if err := d.emit(ctx, alert); err != nil {
		return err
	}
	rep.AlertsEmitted++
	return nil
}

// emit persists the alert and, when a publisher is wired, pushes the event to
// the broker. Publish failures are logged only: the alert row is the source
// of truth and notification delivery is best-effort.
func (d *Detector) emit(ctx context.Context, a *model.PriceAlert) error {
	if err := d.alerts.Create(ctx, a); err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}
	if d.publish != nil {
		if err := d.publish(ctx, queue.NewPriceAlertEvent(a)); err != nil {
			log.Printf("detector: publish alert %d: %v", a.ID, err)
		}
	}
	return nil
}

// configFor loads the tenant's configuration, degrading to engine defaults
// when the row is missing or the read fails. Configuration trouble must
// never block ingestion or detection.
func (d *Detector) configFor(ctx context.Context, tenantID uint64) model.AlertConfiguration {
	cfg, err := d.configs.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, repository.ErrAlertConfigNotFound) {
			log.Printf("detector: alert config for tenant %d: %v (using defaults)", tenantID, err)
		}
		return model.DefaultAlertConfiguration(tenantID)
	}
	return *cfg
}

// inFilter reports whether val passes a comma-separated allow list. An empty
// list allows everything.
func inFilter(csv, val string) bool {
	if strings.TrimSpace(csv) == "" {
		return true
	}
	for _, part := range strings.Split(csv, ",") {
		if strings.EqualFold(strings.TrimSpace(part), val) {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absInt(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
