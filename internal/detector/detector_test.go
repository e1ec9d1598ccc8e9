package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/queue"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

type fakeConfigs struct {
	cfg *model.AlertConfiguration
}

func (f *fakeConfigs) Get(_ context.Context, tenantID uint64) (*model.AlertConfiguration, error) {
	if f.cfg == nil {
		return nil, repository.ErrAlertConfigNotFound
	}
	return f.cfg, nil
}

type fakeHistory struct {
	priors    map[model.PricingKey]*repository.PriorPrice
	prevKeys  map[model.PricingKey]int64
	prevFound bool
}

func (f *fakeHistory) LatestPrior(_ context.Context, _ uint64, key model.PricingKey, _ uint64) (*repository.PriorPrice, error) {
	return f.priors[key], nil
}

func (f *fakeHistory) PreviousRunKeySet(_ context.Context, _ uint64, _, _ string, _ uint64) (map[model.PricingKey]int64, bool, error) {
	return f.prevKeys, f.prevFound, nil
}

type fakeAlerts struct {
	created []model.PriceAlert
	fail    bool
}

func (f *fakeAlerts) Create(_ context.Context, a *model.PriceAlert) error {
	if f.fail {
		return errors.New("insert failed")
	}
	a.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *a)
	return nil
}

func key(ticket string) model.PricingKey {
	return model.PricingKey{TheaterName: "Roxy", TicketType: ticket, Format: "Standard"}
}

func observation(ticket string, cents int64) ingest.ObservedPrice {
	return ingest.ObservedPrice{Key: key(ticket), FilmTitle: "Dune Part Two", PriceCents: cents, ShowingID: 1}
}

func TestEvaluatePriceTransitions(t *testing.T) {
	cases := []struct {
		name      string
		prior     int64 // 0 means no prior observation for the key
		prevFound bool
		price     int64
		wantKind  string // empty means no alert expected
		wantPct   float64
	}{
		{name: "below both thresholds", prior: 1000, prevFound: true, price: 1040},
		{name: "percent threshold crossed", prior: 1000, prevFound: true, price: 1060, wantKind: model.AlertPriceIncrease, wantPct: 6.0},
		{name: "amount threshold crossed", prior: 5000, prevFound: true, price: 5150, wantKind: model.AlertPriceIncrease, wantPct: 3.0},
		{name: "unchanged price never alerts", prior: 1250, prevFound: true, price: 1250},
		{name: "decrease", prior: 1060, prevFound: true, price: 1000, wantKind: model.AlertPriceDecrease},
		{name: "both thresholds escalate", prior: 1000, prevFound: true, price: 1200, wantKind: model.AlertSignificantChange, wantPct: 20.0},
		{name: "first scrape is a baseline", prevFound: false, price: 1500},
		{name: "new key on later scrape", prevFound: true, price: 1500, wantKind: model.AlertNewOffering},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			history := &fakeHistory{priors: map[model.PricingKey]*repository.PriorPrice{}, prevFound: tc.prevFound}
			if tc.prior != 0 {
				history.priors[key("ADULT")] = &repository.PriorPrice{PriceCents: tc.prior, RunID: 1}
			}
			alerts := &fakeAlerts{}
			d := New(&fakeConfigs{}, history, alerts, nil)

			run := &model.ScrapeRun{ID: 2, TenantID: 7}
			rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", []ingest.ObservedPrice{observation("ADULT", tc.price)})

			if rep.KeyFailures != 0 {
				t.Fatalf("key failures = %d, want 0", rep.KeyFailures)
			}
			if tc.wantKind == "" {
				if len(alerts.created) != 0 {
					t.Fatalf("got %d alert(s), want none: %+v", len(alerts.created), alerts.created)
				}
				return
			}
			if len(alerts.created) != 1 {
				t.Fatalf("got %d alert(s), want 1", len(alerts.created))
			}
			a := alerts.created[0]
			if a.Kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", a.Kind, tc.wantKind)
			}
			if tc.wantPct != 0 && a.ChangePercent != tc.wantPct {
				t.Errorf("change percent = %v, want %v", a.ChangePercent, tc.wantPct)
			}
			if a.TenantID != 7 {
				t.Errorf("tenant = %d, want 7", a.TenantID)
			}
			switch a.Kind {
			case model.AlertNewOffering:
				if a.OldPriceCents != nil {
					t.Error("new offering alert must not carry an old price")
				}
				if a.NewPriceCents == nil || *a.NewPriceCents != tc.price {
					t.Errorf("new price = %v, want %d", a.NewPriceCents, tc.price)
				}
			default:
				if a.OldPriceCents == nil || *a.OldPriceCents != tc.prior {
					t.Errorf("old price = %v, want %d", a.OldPriceCents, tc.prior)
				}
			}
		})
	}
}

func TestEvaluateDiscontinued(t *testing.T) {
	history := &fakeHistory{
		priors: map[model.PricingKey]*repository.PriorPrice{
			key("ADULT"): {PriceCents: 1200, RunID: 1},
		},
		prevKeys: map[model.PricingKey]int64{
			key("ADULT"):  1200,
			key("SENIOR"): 900,
		},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	d := New(&fakeConfigs{}, history, alerts, nil)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	observed := []ingest.ObservedPrice{observation("ADULT", 1200)}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", observed)

	if rep.AlertsEmitted != 1 {
		t.Fatalf("alerts emitted = %d, want 1", rep.AlertsEmitted)
	}
	a := alerts.created[0]
	if a.Kind != model.AlertDiscontinued {
		t.Fatalf("kind = %s, want %s", a.Kind, model.AlertDiscontinued)
	}
	if a.TicketType != "SENIOR" {
		t.Errorf("ticket type = %s, want SENIOR", a.TicketType)
	}
	if a.OldPriceCents == nil || *a.OldPriceCents != 900 {
		t.Errorf("old price = %v, want 900", a.OldPriceCents)
	}
	if a.NewPriceCents != nil {
		t.Error("discontinued alert must not carry a new price")
	}

	// A re-run where the previous scrape also lacked the key must not re-fire.
	delete(history.prevKeys, key("SENIOR"))
	alerts.created = nil
	rep = d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", observed)
	if rep.AlertsEmitted != 0 {
		t.Fatalf("re-run emitted %d alert(s), want 0", rep.AlertsEmitted)
	}
}

func TestEvaluateEmptyDayIsNotDiscontinuation(t *testing.T) {
	history := &fakeHistory{
		prevKeys:  map[model.PricingKey]int64{key("ADULT"): 1200},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	d := New(&fakeConfigs{}, history, alerts, nil)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", nil)
	if rep.AlertsEmitted != 0 {
		t.Fatalf("empty scrape emitted %d alert(s), want 0", rep.AlertsEmitted)
	}
}

func TestEvaluateCollapsesBatchPerKey(t *testing.T) {
	history := &fakeHistory{
		priors:    map[model.PricingKey]*repository.PriorPrice{key("ADULT"): {PriceCents: 1000, RunID: 1}},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	d := New(&fakeConfigs{}, history, alerts, nil)

	// Two screenings observe the same key; only the latest price counts and
	// only one alert may come out.
	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	observed := []ingest.ObservedPrice{
		observation("ADULT", 1060),
		observation("ADULT", 1060),
	}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", observed)
	if rep.AlertsEmitted != 1 {
		t.Fatalf("alerts emitted = %d, want 1", rep.AlertsEmitted)
	}
}

func TestEvaluateHonorsDisabledKinds(t *testing.T) {
	cfg := model.DefaultAlertConfiguration(7)
	cfg.IncreaseEnabled = false
	cfg.SignificantEnabled = false

	history := &fakeHistory{
		priors:    map[model.PricingKey]*repository.PriorPrice{key("ADULT"): {PriceCents: 1000, RunID: 1}},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	d := New(&fakeConfigs{cfg: &cfg}, history, alerts, nil)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", []ingest.ObservedPrice{observation("ADULT", 1300)})
	if rep.AlertsEmitted != 0 {
		t.Fatalf("disabled increase still emitted %d alert(s)", rep.AlertsEmitted)
	}
}

func TestEvaluateTicketTypeFilter(t *testing.T) {
	cfg := model.DefaultAlertConfiguration(7)
	cfg.TicketTypeFilter = "ADULT, CHILD"

	history := &fakeHistory{
		priors: map[model.PricingKey]*repository.PriorPrice{
			key("ADULT"):  {PriceCents: 1000, RunID: 1},
			key("SENIOR"): {PriceCents: 800, RunID: 1},
		},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	d := New(&fakeConfigs{cfg: &cfg}, history, alerts, nil)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	observed := []ingest.ObservedPrice{
		observation("ADULT", 1200),
		observation("SENIOR", 1000),
	}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", observed)
	if rep.AlertsEmitted != 1 {
		t.Fatalf("alerts emitted = %d, want 1 (SENIOR filtered out)", rep.AlertsEmitted)
	}
	if alerts.created[0].TicketType != "ADULT" {
		t.Errorf("alerted ticket type = %s, want ADULT", alerts.created[0].TicketType)
	}
}

func TestEvaluatePublishFailureDoesNotFailKey(t *testing.T) {
	history := &fakeHistory{
		priors:    map[model.PricingKey]*repository.PriorPrice{key("ADULT"): {PriceCents: 1000, RunID: 1}},
		prevFound: true,
	}
	alerts := &fakeAlerts{}
	publish := func(_ context.Context, _ queue.PriceAlertEvent) error {
		return errors.New("broker down")
	}
	d := New(&fakeConfigs{}, history, alerts, publish)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", []ingest.ObservedPrice{observation("ADULT", 1060)})
	if rep.KeyFailures != 0 {
		t.Fatalf("publish failure counted as key failure")
	}
	if rep.AlertsEmitted != 1 || len(alerts.created) != 1 {
		t.Fatalf("alert was not persisted despite publish failure")
	}
}

func TestEvaluatePersistFailureIsIsolated(t *testing.T) {
	history := &fakeHistory{
		priors: map[model.PricingKey]*repository.PriorPrice{
			key("ADULT"): {PriceCents: 1000, RunID: 1},
			key("CHILD"): {PriceCents: 500, RunID: 1},
		},
		prevFound: true,
	}
	alerts := &fakeAlerts{fail: true}
	d := New(&fakeConfigs{}, history, alerts, nil)

	run := &model.ScrapeRun{ID: 2, TenantID: 7}
	observed := []ingest.ObservedPrice{
		observation("ADULT", 1200),
		observation("CHILD", 700),
	}
	rep := d.Evaluate(context.Background(), run, "Roxy", "2026-08-29", observed)
	if rep.AlertsEmitted != 0 {
		t.Fatalf("alerts emitted = %d, want 0", rep.AlertsEmitted)
	}
	if rep.KeyFailures != 2 {
		t.Fatalf("key failures = %d, want 2", rep.KeyFailures)
	}
}
