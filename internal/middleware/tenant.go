// Package middleware contains the Echo middleware for the engine's HTTP
// surface: tenant resolution, tenant-scoped response caching and the rate
// limit on the scrape trigger. Authentication itself lives in front of the
// engine; by the time a request arrives here its X-Tenant-ID header has been
// vetted by that layer.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// tenantContextKey is where ResolveTenant stores the parsed tenant id.
const tenantContextKey = "tenant_id"

// ResolveTenant extracts the tenant id from the X-Tenant-ID header and
// stores it in the request context. Requests without a valid tenant are
// rejected: every table in the engine is tenant-scoped and there is no
// meaningful cross-tenant query.
func ResolveTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-Tenant-ID")
			if raw == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{
					"error":   "missing_tenant",
					"message": "X-Tenant-ID header is required",
				})
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{
					"error":   "invalid_tenant",
					"message": "X-Tenant-ID must be a positive integer",
				})
			}
			c.Set(tenantContextKey, id)
			return next(c)
		}
	}
}

// TenantID returns the tenant id stored by ResolveTenant, or 0 when the
// middleware did not run (which handlers treat as a programming error).
func TenantID(c echo.Context) uint64 {
	if v, ok := c.Get(tenantContextKey).(uint64); ok {
		return v
	}
	return 0
}
