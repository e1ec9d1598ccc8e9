package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinewatch/showtime-engine/internal/middleware"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/orchestrator"
)

// scrapeRequest is the POST /v1/scrape body. Theater forces a single target
// regardless of its scrape frequency; empty means "everything due". PlayDate
// defaults to today.
type scrapeRequest struct {
	Theater  string `json:"theater"`
	PlayDate string `json:"play_date"`
}

// TriggerScrape starts a manual scrape run in the background and responds
// 202 immediately. The run is detached from the request context so closing
// the HTTP connection does not cancel in-flight jobs; progress is visible
// through GET /v1/runs.
func (h *EngineHandler) TriggerScrape(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	var body scrapeRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_body",
			"message": "request body must be JSON",
		})
	}
	if body.PlayDate != "" {
		if _, err := time.Parse("2006-01-02", body.PlayDate); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   "invalid_play_date",
				"message": "play_date must be formatted as 2006-01-02",
			})
		}
	}

	req := orchestrator.Request{
		TenantID:    tenantID,
		TriggerMode: model.TriggerManual,
		TheaterName: strings.TrimSpace(body.Theater),
		PlayDate:    body.PlayDate,
	}
	go func() {
		if _, err := h.Orch.Run(context.Background(), req); err != nil {
			log.Printf("handler: manual scrape for tenant %d: %v", tenantID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, echo.Map{
		"status":  "accepted",
		"message": "scrape run started",
	})
}
