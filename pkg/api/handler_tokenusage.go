package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/tokenusage"
)

// tokenStatsHandler handles GET /token-stats?domain=.
func (s *Server) tokenStatsHandler(c *echo.Context) error {
	stats, err := s.store.DomainTokenStats(c.Request().Context(), c.QueryParam("domain"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to load token stats"))
	}
	return c.JSON(http.StatusOK, map[string]any{"domains": stats})
}

// tokenUsageCurrentHandler handles GET /api/token-usage/current, the §4.F
// rolling-window contract.
func (s *Server) tokenUsageCurrentHandler(c *echo.Context) error {
	window := 60
	if v := c.QueryParam("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}

	usage, err := s.tokenUsage.Current(c.Request().Context(), tokenusage.Query{
		AccountID:     c.QueryParam("accountId"),
		WindowMinutes: window,
		Domain:        c.QueryParam("domain"),
		Model:         c.QueryParam("model"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to compute token usage"))
	}
	return c.JSON(http.StatusOK, usage)
}

// tokenUsageDailyHandler handles GET /api/token-usage/daily.
func (s *Server) tokenUsageDailyHandler(c *echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	points, err := s.tokenUsage.Daily(c.Request().Context(), c.QueryParam("accountId"), days, c.QueryParam("domain"), c.QueryParam("model"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to compute daily usage"))
	}

	if c.QueryParam("aggregate") == "true" {
		var total storage.DailyUsagePoint
		for _, p := range points {
			total.InputTokens += p.InputTokens
			total.OutputTokens += p.OutputTokens
			total.TotalTokens += p.TotalTokens
			total.RequestCount += p.RequestCount
		}
		return c.JSON(http.StatusOK, &total)
	}

	return c.JSON(http.StatusOK, points)
}
