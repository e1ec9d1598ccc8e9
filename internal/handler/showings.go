package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cinewatch/showtime-engine/internal/middleware"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// GetShowings lists showings for the tenant with optional theater, film,
// date-range and ticket-type filters. Dates are inclusive "2006-01-02"
// strings; limit is capped at 500.
func (h *EngineHandler) GetShowings(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit > 500 {
		limit = 500
	}
	q := repository.ShowingQuery{
		Theater:    strings.TrimSpace(c.QueryParam("theater")),
		Film:       strings.TrimSpace(c.QueryParam("film")),
		DateFrom:   strings.TrimSpace(c.QueryParam("from")),
		DateTo:     strings.TrimSpace(c.QueryParam("to")),
		TicketType: strings.ToUpper(strings.TrimSpace(c.QueryParam("ticket_type"))),
		Limit:      limit,
	}

	items, err := h.Showings.List(c.Request().Context(), tenantID, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  items,
		"count": len(items),
	})
}

// GetShowingPrices returns the full price history for one showing, oldest
// observation first.
func (h *EngineHandler) GetShowingPrices(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_id",
			"message": "showing id must be a positive integer",
		})
	}

	showing, err := h.Showings.GetByID(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error":   "not_found",
				"message": "showing not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}

	prices, err := h.Observations.ListByShowing(c.Request().Context(), tenantID, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showing": showing,
		"prices":  prices,
	})
}
