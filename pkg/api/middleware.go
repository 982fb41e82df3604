package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders sets standard response headers on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// dashboardAuth requires the dashboard's shared secret on every Read/Control
// API route, per §4.H ("All require X-Dashboard-Key ... alternate
// Authorization: Bearer"). The comparison is constant-time so response
// latency cannot be used to guess the secret.
func (s *Server) dashboardAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			presented := c.Request().Header.Get("X-Dashboard-Key")
			if presented == "" {
				if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					presented = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			want := s.cfg.DashboardAPIKey
			if want == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(want)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, newEnvelope("authentication_error", "invalid or missing dashboard key"))
			}
			return next(c)
		}
	}
}
