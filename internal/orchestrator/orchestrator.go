// Package orchestrator schedules and bounds concurrency over theater
// targets. One Run drives at most N concurrent jobs, each an independent
// sequential pipeline (retrieve -> extract -> ingest -> detect), and produces
// a single ScrapeRun row summarizing the outcome. Job failures are isolated:
// one theater timing out is recorded against that theater and the run still
// completes as long as any job succeeded.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/detector"
	"github.com/cinewatch/showtime-engine/internal/extractor"
	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/repository"
	"github.com/cinewatch/showtime-engine/internal/retriever"
)

// PageRetriever fetches rendered page content for one target.
// retriever.Retriever satisfies it.
type PageRetriever interface {
	Retrieve(ctx context.Context, target model.TheaterTarget, playDate string) (*retriever.PageContent, error)
}

// TargetSource lists targets and records last-scrape bookkeeping.
// targetcache.Cache satisfies it.
type TargetSource interface {
	ListTargets(ctx context.Context, tenantID uint64) ([]model.TheaterTarget, error)
	MarkScraped(ctx context.Context, target model.TheaterTarget, at time.Time, status string) error
}

// RunStore creates and finalizes scrape runs. repository.RunRepo satisfies it.
type RunStore interface {
	Create(ctx context.Context, run *model.ScrapeRun) error
	Finish(ctx context.Context, run *model.ScrapeRun) error
}

// BatchStore persists one job's extraction result. ingest.Store satisfies it.
type BatchStore interface {
	IngestBatch(ctx context.Context, run *model.ScrapeRun, res *extractor.Result) (*ingest.Result, error)
}

// ChangeDetector evaluates newly ingested observations.
// detector.Detector satisfies it.
type ChangeDetector interface {
	Evaluate(ctx context.Context, run *model.ScrapeRun, theater, playDate string, observed []ingest.ObservedPrice) detector.Report
}

// FilmCatalog supplies the tenant's known-film list for tolerant title
// matching. repository.ShowingRepo satisfies it.
type FilmCatalog interface {
	KnownFilmTitles(ctx context.Context, tenantID uint64) ([]string, error)
}

// Request describes one scrape invocation. TheaterName force-includes a
// single target regardless of due-ness (the manual re-scrape path); when
// empty every due target is dispatched. PlayDate defaults to today (UTC).
type Request struct {
	TenantID    uint64
	TriggerMode string // model.TriggerScheduled or model.TriggerManual
	TheaterName string
	PlayDate    string
}

// Orchestrator wires the pipeline stages together. All dependencies are
// supplied at construction; the orchestrator itself holds no mutable state
// between runs.
type Orchestrator struct {
	cfg       config.ScrapeConfig
	targets   TargetSource
	runs      RunStore
	retriever PageRetriever
	extractor *extractor.Extractor
	store     BatchStore
	detector  ChangeDetector
	films     FilmCatalog
}

// New constructs an Orchestrator.
func New(cfg config.ScrapeConfig, targets TargetSource, runs RunStore, pr PageRetriever, ex *extractor.Extractor, store BatchStore, det ChangeDetector, films FilmCatalog) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		targets:   targets,
		runs:      runs,
		retriever: pr,
		extractor: ex,
		store:     store,
		detector:  det,
		films:     films,
	}
}

// jobResult is what each worker reports back on the results channel.
type jobResult struct {
	target       model.TheaterTarget
	err          error
	cancelled    bool
	skipped      int
	observations int
	alerts       int
}

// Run executes one scrape run and returns the finalized ScrapeRun. The
// context cancels cooperatively: in-flight jobs finish their current pipeline
// step, are recorded as failed with a cancellation reason, and the run is
// still finalized.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.ScrapeRun, error) {
	targets, err := o.targets.ListTargets(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	due, err := o.selectDue(targets, req)
	if err != nil {
		return nil, err
	}

	run := &model.ScrapeRun{TenantID: req.TenantID, TriggerMode: req.TriggerMode}
	if run.TriggerMode == "" {
		run.TriggerMode = model.TriggerScheduled
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	playDate := req.PlayDate
	if playDate == "" {
		playDate = time.Now().UTC().Format("2006-01-02")
	}

	if len(due) == 0 {
		// Nothing due is a healthy outcome, not a failure.
		run.Status = model.RunStatusCompleted
		if err := o.runs.Finish(ctx, run); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
		return run, nil
	}

	knownFilms, err := o.films.KnownFilmTitles(ctx, req.TenantID)
	if err != nil {
		// Degrade: every title will be routed to the unmatched queue and
		// still ingested verbatim, so the run can proceed.
		log.Printf("orchestrator: known films for tenant %d: %v", req.TenantID, err)
		knownFilms = nil
	}

	results := make(chan jobResult, len(due))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, target := range due {
		wg.Add(1)
		go func(t model.TheaterTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- o.runJob(ctx, run, t, playDate, knownFilms)
		}(target)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Aggregate results and record per-target bookkeeping. Bookkeeping runs
	// here, in the orchestrator, scoped to each job's own target row; it uses
	// a fresh context so a cancelled run still gets its timestamps written
	// and persistently failing targets are not hot-looped on the next tick.
	var succeeded, failed int
	var summary []string
	for res := range results {
		status := "ok"
		switch {
		case res.cancelled:
			status = "cancelled"
			failed++
			summary = append(summary, fmt.Sprintf("%s: cancelled before completion", res.target.Name))
		case res.err != nil:
			status = "failed"
			failed++
			summary = append(summary, fmt.Sprintf("%s: %v", res.target.Name, res.err))
		default:
			succeeded++
			run.RecordsScraped += res.observations
			if res.skipped > 0 {
				summary = append(summary, fmt.Sprintf("%s: skipped %d malformed block(s)", res.target.Name, res.skipped))
			}
		}

		bkCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := o.targets.MarkScraped(bkCtx, res.target, time.Now().UTC(), status); err != nil {
			log.Printf("orchestrator: bookkeeping for %q: %v", res.target.Name, err)
		}
		cancel()
	}

	sort.Strings(summary)
	run.ErrorSummary = strings.Join(summary, "; ")
	if failed > 0 && succeeded == 0 {
		run.Status = model.RunStatusFailed
	} else {
		run.Status = model.RunStatusCompleted
	}

	finCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.Finish(finCtx, run); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	log.Printf("orchestrator: run %d %s: %d/%d jobs ok, %d records",
		run.ID, strings.ToLower(run.Status), succeeded, len(due), run.RecordsScraped)
	return run, nil
}

// selectDue picks the targets to dispatch: the named one for a forced
// single-theater scrape, otherwise everything due by frequency.
func (o *Orchestrator) selectDue(targets []model.TheaterTarget, req Request) ([]model.TheaterTarget, error) {
	if req.TheaterName != "" {
		for _, t := range targets {
			if t.Name == req.TheaterName {
				return []model.TheaterTarget{t}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", repository.ErrTargetNotFound, req.TheaterName)
	}
	now := time.Now().UTC()
	var due []model.TheaterTarget
	for _, t := range targets {
		if t.Due(now, o.cfg.DefaultFreq) {
			due = append(due, t)
		}
	}
	return due, nil
}

// runJob executes the sequential pipeline for one theater. Cancellation is
// cooperative: the current step runs to completion, then the job stops, so a
// partially-written batch is never left behind (ingestion is transactional
// and detection only runs after a committed batch).
func (o *Orchestrator) runJob(ctx context.Context, run *model.ScrapeRun, target model.TheaterTarget, playDate string, knownFilms []string) jobResult {
	res := jobResult{target: target}
	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	jobCtx, cancel := context.WithTimeout(ctx, o.cfg.TheaterBudget)
	defer cancel()

	content, err := o.retriever.Retrieve(jobCtx, target, playDate)
	if err != nil {
		if ctx.Err() != nil {
			res.cancelled = true
			return res
		}
		if jobCtx.Err() != nil && !errors.Is(err, retriever.ErrNavigationTimeout) {
			err = fmt.Errorf("theater budget exceeded: %w", err)
		}
		res.err = fmt.Errorf("retrieve: %w", err)
		return res
	}
	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	extracted := o.extractor.Extract(extractor.Input{
		TenantID:    target.TenantID,
		TheaterName: target.Name,
		PlayDate:    playDate,
		KnownFilms:  knownFilms,
		Fragments:   content.Fragments,
	})
	res.skipped = extracted.Skipped
	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	ingested, err := o.store.IngestBatch(jobCtx, run, extracted)
	if err != nil {
		if ctx.Err() != nil {
			res.cancelled = true
			return res
		}
		if errors.Is(err, repository.ErrDuplicate) {
			// Broken uniqueness invariant: fatal for this job and loud for
			// operators, per the error-handling contract.
			log.Printf("orchestrator: INVARIANT VIOLATION ingesting %q: %v", target.Name, err)
		}
		res.err = fmt.Errorf("ingest: %w", err)
		return res
	}
	res.observations = ingested.ObservationsAppended
	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	report := o.detector.Evaluate(jobCtx, run, target.Name, playDate, ingested.Observed)
	res.alerts = report.AlertsEmitted
	if report.KeyFailures > 0 {
		log.Printf("orchestrator: %d detector key failure(s) for %q", report.KeyFailures, target.Name)
	}
	return res
}
