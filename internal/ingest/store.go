// Package ingest persists one scrape job's extracted batch. Each batch runs
// inside a single transaction: the showing upserts, the price-observation
// appends and the unmatched-queue updates for one theater/date either all
// become visible or none do, so a job that dies mid-write cannot leave a
// partially-ingested theater behind for the change detector to misread.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cinewatch/showtime-engine/internal/extractor"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// ObservedPrice is what the detector receives per appended observation: the
// pricing key plus the price and the showing it was seen on.
type ObservedPrice struct {
	Key        model.PricingKey
	FilmTitle  string
	PriceCents int64
	ShowingID  uint64
}

// Result summarizes one ingested batch.
type Result struct {
	ShowingsUpserted     int
	ObservationsAppended int
	Observed             []ObservedPrice
}

// Store coordinates the per-job ingestion transaction across repositories.
type Store struct {
	showings     *repository.ShowingRepo
	observations *repository.ObservationRepo
	unmatched    *repository.UnmatchedRepo
}

// NewStore constructs a Store over the given repositories. All three must
// share the same underlying database.
func NewStore(showings *repository.ShowingRepo, observations *repository.ObservationRepo, unmatched *repository.UnmatchedRepo) *Store {
	return &Store{showings: showings, observations: observations, unmatched: unmatched}
}

// IngestBatch persists one job's extraction result for the given run.
// Showing upserts are idempotent on the identity key; observations are
// always appended, even when the price is unchanged from the prior run.
// On error the whole batch is rolled back.
//
// A repository.ErrDuplicate from the upsert is passed through unwrapped so
// the orchestrator can recognize a broken uniqueness invariant and fail the
// job loudly.
func (s *Store) IngestBatch(ctx context.Context, run *model.ScrapeRun, res *extractor.Result) (*Result, error) {
	out := &Result{}
	observedAt := time.Now().UTC()

	tx, err := s.showings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range res.Candidates {
		cand := &res.Candidates[i]
		if err = s.showings.UpsertTx(ctx, tx, &cand.Showing); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, err
			}
			return nil, fmt.Errorf("upsert showing %s/%s: %w", cand.Showing.FilmTitle, cand.Showing.Showtime, err)
		}
		out.ShowingsUpserted++

		for _, price := range cand.Prices {
			obs := model.PriceObservation{
				TenantID:   cand.Showing.TenantID,
				ShowingID:  cand.Showing.ID,
				RunID:      run.ID,
				TicketType: price.TicketType,
				PriceCents: price.PriceCents,
				ObservedAt: observedAt,
			}
			if err = s.observations.InsertTx(ctx, tx, &obs); err != nil {
				return nil, fmt.Errorf("append observation: %w", err)
			}
			out.ObservationsAppended++
			out.Observed = append(out.Observed, ObservedPrice{
				Key: model.PricingKey{
					TheaterName: cand.Showing.TheaterName,
					TicketType:  price.TicketType,
					Format:      cand.Showing.Format,
				},
				FilmTitle:  cand.Showing.FilmTitle,
				PriceCents: price.PriceCents,
				ShowingID:  cand.Showing.ID,
			})
		}
	}

	// Unmatched fragments ride in the same transaction; they are a review
	// queue, not a gate, so they share the batch's fate but never cause it.
	tenantID := run.TenantID
	for _, title := range res.UnmatchedFilms {
		if err = s.unmatched.RecordFilmTx(ctx, tx, tenantID, title, observedAt); err != nil {
			return nil, fmt.Errorf("record unmatched film: %w", err)
		}
	}
	for _, label := range res.UnmatchedTicketTypes {
		if err = s.unmatched.RecordTicketTypeTx(ctx, tx, tenantID, label, observedAt); err != nil {
			return nil, fmt.Errorf("record unmatched ticket type: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ingest tx: %w", err)
	}
	return out, nil
}
