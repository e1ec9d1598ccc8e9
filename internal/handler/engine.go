// Package handler implements the engine's narrow HTTP read interface plus
// the on-demand scrape trigger. External collaborators (dashboard, report
// and notification layers) consume showings, price history, alerts, run
// history and the curation queues through these endpoints; nothing here
// renders UI or owns report formatting.
package handler

import (
	"github.com/cinewatch/showtime-engine/internal/orchestrator"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// EngineHandler bundles the repositories behind the read interface and the
// orchestrator behind the scrape trigger.
type EngineHandler struct {
	Showings     *repository.ShowingRepo
	Observations *repository.ObservationRepo
	Alerts       *repository.AlertRepo
	Runs         *repository.RunRepo
	Unmatched    *repository.UnmatchedRepo
	Orch         *orchestrator.Orchestrator
}

// NewEngineHandler constructs an EngineHandler.
func NewEngineHandler(showings *repository.ShowingRepo, observations *repository.ObservationRepo,
	alerts *repository.AlertRepo, runs *repository.RunRepo, unmatched *repository.UnmatchedRepo,
	orch *orchestrator.Orchestrator) *EngineHandler {
	return &EngineHandler{
		Showings:     showings,
		Observations: observations,
		Alerts:       alerts,
		Runs:         runs,
		Unmatched:    unmatched,
		Orch:         orch,
	}
}
