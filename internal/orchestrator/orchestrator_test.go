package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/detector"
	"github.com/cinewatch/showtime-engine/internal/extractor"
	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/repository"
	"github.com/cinewatch/showtime-engine/internal/retriever"
)

type fakeTargets struct {
	mu      sync.Mutex
	targets []model.TheaterTarget
	marked  map[string]string // theater name -> last bookkeeping status
}

func (f *fakeTargets) ListTargets(_ context.Context, _ uint64) ([]model.TheaterTarget, error) {
	return f.targets, nil
}

func (f *fakeTargets) MarkScraped(_ context.Context, t model.TheaterTarget, _ time.Time, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = make(map[string]string)
	}
	f.marked[t.Name] = status
	return nil
}

type fakeRuns struct {
	created  int
	finished *model.ScrapeRun
}

func (f *fakeRuns) Create(_ context.Context, run *model.ScrapeRun) error {
	f.created++
	run.ID = 42
	run.Status = model.RunStatusRunning
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, run *model.ScrapeRun) error {
	f.finished = run
	return nil
}

// fakeRetriever fails the theaters named in failing and otherwise returns one
// empty fragment. It tracks the peak number of concurrent calls.
type fakeRetriever struct {
	failing  map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRetriever) Retrieve(ctx context.Context, target model.TheaterTarget, _ string) (*retriever.PageContent, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.peak.Load()
		if cur <= prev || f.peak.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failing[target.Name]; err != nil {
		return nil, err
	}
	return &retriever.PageContent{RetrievedAt: time.Now()}, nil
}

type fakeStore struct {
	observations int
	err          error
}

func (f *fakeStore) IngestBatch(_ context.Context, _ *model.ScrapeRun, _ *extractor.Result) (*ingest.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Result{ObservationsAppended: f.observations}, nil
}

type fakeDetector struct {
	calls atomic.Int32
}

func (f *fakeDetector) Evaluate(_ context.Context, _ *model.ScrapeRun, _, _ string, _ []ingest.ObservedPrice) detector.Report {
	f.calls.Add(1)
	return detector.Report{}
}

type fakeFilms struct{}

func (fakeFilms) KnownFilmTitles(_ context.Context, _ uint64) ([]string, error) {
	return []string{"Dune: Part Two"}, nil
}

func testScrapeConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		Concurrency:   4,
		NavTimeout:    time.Second,
		TheaterBudget: 5 * time.Second,
		DefaultFreq:   6 * time.Hour,
	}
}

func theaterNamed(name string) model.TheaterTarget {
	return model.TheaterTarget{TenantID: 7, Name: name, BaseURL: "http://example.test"}
}

func newTestOrchestrator(cfg config.ScrapeConfig, targets *fakeTargets, runs *fakeRuns, pr PageRetriever, store *fakeStore, det *fakeDetector) *Orchestrator {
	return New(cfg, targets, runs, pr, extractor.New(), store, det, fakeFilms{})
}

func TestRunIsolatesJobFailures(t *testing.T) {
	targets := &fakeTargets{targets: []model.TheaterTarget{
		theaterNamed("Roxy"), theaterNamed("Broken Bijou"), theaterNamed("Grand"),
	}}
	runs := &fakeRuns{}
	pr := &fakeRetriever{failing: map[string]error{"Broken Bijou": retriever.ErrLayoutChanged}}
	store := &fakeStore{observations: 3}
	det := &fakeDetector{}

	o := newTestOrchestrator(testScrapeConfig(), targets, runs, pr, store, det)
	run, err := o.Run(context.Background(), Request{TenantID: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if run.Status != model.RunStatusCompleted {
		t.Errorf("status = %s, want COMPLETED (one failure must not fail the run)", run.Status)
	}
	if run.RecordsScraped != 6 {
		t.Errorf("records scraped = %d, want 6 (two successful jobs)", run.RecordsScraped)
	}
	if !strings.Contains(run.ErrorSummary, "Broken Bijou") {
		t.Errorf("error summary %q should name the failing theater", run.ErrorSummary)
	}
	if targets.marked["Broken Bijou"] != "failed" {
		t.Errorf("bookkeeping for failed theater = %q, want failed", targets.marked["Broken Bijou"])
	}
	if targets.marked["Roxy"] != "ok" || targets.marked["Grand"] != "ok" {
		t.Errorf("bookkeeping = %v, want ok for the healthy theaters", targets.marked)
	}
	if det.calls.Load() != 2 {
		t.Errorf("detector calls = %d, want 2 (failed job never reaches detection)", det.calls.Load())
	}
}

func TestRunFailsWhenEveryJobFails(t *testing.T) {
	targets := &fakeTargets{targets: []model.TheaterTarget{theaterNamed("Roxy"), theaterNamed("Grand")}}
	runs := &fakeRuns{}
	pr := &fakeRetriever{failing: map[string]error{
		"Roxy":  errors.New("connection refused"),
		"Grand": retriever.ErrTheaterNotFound,
	}}

	o := newTestOrchestrator(testScrapeConfig(), targets, runs, pr, &fakeStore{}, &fakeDetector{})
	run, err := o.Run(context.Background(), Request{TenantID: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunStatusFailed {
		t.Errorf("status = %s, want FAILED", run.Status)
	}
	if run.ErrorSummary == "" {
		t.Error("error summary must not be empty when every job fails")
	}
}

func TestRunWithNothingDueCompletes(t *testing.T) {
	now := time.Now().UTC()
	fresh := theaterNamed("Roxy")
	fresh.LastScrapedAt = &now

	targets := &fakeTargets{targets: []model.TheaterTarget{fresh}}
	runs := &fakeRuns{}
	pr := &fakeRetriever{}

	o := newTestOrchestrator(testScrapeConfig(), targets, runs, pr, &fakeStore{}, &fakeDetector{})
	run, err := o.Run(context.Background(), Request{TenantID: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	if runs.created != 1 || runs.finished == nil {
		t.Error("an empty run must still be created and finalized")
	}
	if pr.peak.Load() != 0 {
		t.Error("no retrieval should happen when nothing is due")
	}
}

func TestRunForcedTheaterIgnoresFrequency(t *testing.T) {
	now := time.Now().UTC()
	fresh := theaterNamed("Roxy")
	fresh.LastScrapedAt = &now

	targets := &fakeTargets{targets: []model.TheaterTarget{fresh}}
	o := newTestOrchestrator(testScrapeConfig(), targets, &fakeRuns{}, &fakeRetriever{}, &fakeStore{}, &fakeDetector{})

	run, err := o.Run(context.Background(), Request{TenantID: 7, TheaterName: "Roxy"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	if targets.marked["Roxy"] != "ok" {
		t.Error("forced theater was not scraped")
	}
}

func TestRunForcedTheaterUnknown(t *testing.T) {
	targets := &fakeTargets{targets: []model.TheaterTarget{theaterNamed("Roxy")}}
	o := newTestOrchestrator(testScrapeConfig(), targets, &fakeRuns{}, &fakeRetriever{}, &fakeStore{}, &fakeDetector{})

	_, err := o.Run(context.Background(), Request{TenantID: 7, TheaterName: "Nonexistent"})
	if !errors.Is(err, repository.ErrTargetNotFound) {
		t.Fatalf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var names []model.TheaterTarget
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		names = append(names, theaterNamed(n))
	}
	targets := &fakeTargets{targets: names}
	pr := &fakeRetriever{delay: 30 * time.Millisecond}

	cfg := testScrapeConfig()
	cfg.Concurrency = 2
	o := newTestOrchestrator(cfg, targets, &fakeRuns{}, pr, &fakeStore{}, &fakeDetector{})

	if _, err := o.Run(context.Background(), Request{TenantID: 7}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if peak := pr.peak.Load(); peak > 2 {
		t.Errorf("peak concurrent retrievals = %d, want <= 2", peak)
	}
}

func TestRunCancellationIsRecordedDistinctly(t *testing.T) {
	targets := &fakeTargets{targets: []model.TheaterTarget{theaterNamed("Roxy"), theaterNamed("Grand")}}
	runs := &fakeRuns{}
	pr := &fakeRetriever{delay: 5 * time.Second}

	o := newTestOrchestrator(testScrapeConfig(), targets, runs, pr, &fakeStore{}, &fakeDetector{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	run, err := o.Run(ctx, Request{TenantID: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunStatusFailed {
		t.Errorf("status = %s, want FAILED when every job was cancelled", run.Status)
	}
	if !strings.Contains(run.ErrorSummary, "cancelled before completion") {
		t.Errorf("error summary %q should record cancellation, not a generic failure", run.ErrorSummary)
	}
	if runs.finished == nil {
		t.Error("a cancelled run must still be finalized")
	}
}

func TestRunDuplicateKeyFailsJob(t *testing.T) {
	targets := &fakeTargets{targets: []model.TheaterTarget{theaterNamed("Roxy")}}
	store := &fakeStore{err: repository.ErrDuplicate}

	o := newTestOrchestrator(testScrapeConfig(), targets, &fakeRuns{}, &fakeRetriever{}, store, &fakeDetector{})
	run, err := o.Run(context.Background(), Request{TenantID: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunStatusFailed {
		t.Errorf("status = %s, want FAILED", run.Status)
	}
	if !strings.Contains(run.ErrorSummary, "ingest") {
		t.Errorf("error summary %q should surface the ingest failure", run.ErrorSummary)
	}
}
