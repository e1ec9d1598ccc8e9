package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestResolveTenant(t *testing.T) {
	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantTenant uint64
	}{
		{name: "valid tenant", header: "7", wantStatus: http.StatusOK, wantTenant: 7},
		{name: "missing header", header: "", wantStatus: http.StatusBadRequest},
		{name: "non-numeric", header: "acme", wantStatus: http.StatusBadRequest},
		{name: "zero is invalid", header: "0", wantStatus: http.StatusBadRequest},
		{name: "negative is invalid", header: "-3", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/v1/showings", nil)
			if tc.header != "" {
				req.Header.Set("X-Tenant-ID", tc.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotTenant uint64
			handler := ResolveTenant()(func(c echo.Context) error {
				gotTenant = TenantID(c)
				return c.NoContent(http.StatusOK)
			})
			if err := handler(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantTenant != 0 && gotTenant != tc.wantTenant {
				t.Errorf("tenant = %d, want %d", gotTenant, tc.wantTenant)
			}
		})
	}
}

func TestTenantIDWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := TenantID(c); got != 0 {
		t.Errorf("tenant without middleware = %d, want 0", got)
	}
}
