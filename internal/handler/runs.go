package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cinewatch/showtime-engine/internal/middleware"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// GetRuns lists recent scrape runs for the tenant, newest first.
func (h *EngineHandler) GetRuns(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit > 200 {
		limit = 200
	}

	runs, err := h.Runs.ListByTenant(c.Request().Context(), tenantID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  runs,
		"count": len(runs),
	})
}

// GetRun returns one scrape run, including its per-theater error summary.
func (h *EngineHandler) GetRun(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_id",
			"message": "run id must be a positive integer",
		})
	}

	run, err := h.Runs.GetByID(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error":   "not_found",
				"message": "scrape run not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, run)
}
