package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cinewatch/showtime-engine/internal/middleware"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

// GetAlerts lists the tenant's price alerts, newest first. Filters:
// acknowledged=true|false, from/to as inclusive "2006-01-02" bounds on
// triggered_at, limit capped at 500.
func (h *EngineHandler) GetAlerts(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	var q repository.AlertQuery
	if raw := strings.TrimSpace(c.QueryParam("acknowledged")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   "invalid_filter",
				"message": "acknowledged must be true or false",
			})
		}
		q.Acknowledged = &v
	}
	q.From = strings.TrimSpace(c.QueryParam("from"))
	q.To = strings.TrimSpace(c.QueryParam("to"))
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if q.Limit > 500 {
		q.Limit = 500
	}

	alerts, err := h.Alerts.List(c.Request().Context(), tenantID, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "database_error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  alerts,
		"count": len(alerts),
	})
}
