package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cinewatch/showtime-engine/internal/middleware"
)

// GetUnmatchedFilms lists film titles that did not match the tenant's known
// catalog, with occurrence counts, for operator curation.
func (h *EngineHandler) GetUnmatchedFilms(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	films, err := h.Unmatched.ListFilms(c.Request().Context(), tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  films,
		"count": len(films),
	})
}

// GetUnmatchedTicketTypes lists ticket-type labels that fell outside the
// canonical vocabulary.
func (h *EngineHandler) GetUnmatchedTicketTypes(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	labels, err := h.Unmatched.ListTicketTypes(c.Request().Context(), tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  labels,
		"count": len(labels),
	})
}
