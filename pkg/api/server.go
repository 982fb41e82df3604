// Package api implements the Read/Control API (§4.H) consumed by the
// dashboard, plus registration of the client-facing proxy route.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/tarsyio/llmproxy/pkg/config"
	"github.com/tarsyio/llmproxy/pkg/proxy"
	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/tokenusage"
	"github.com/tarsyio/llmproxy/pkg/version"
)

// Server is the HTTP API server: it fronts both the client-facing LLM
// surface (registered from pkg/proxy) and the dashboard's Read/Control API.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg        *config.Config
	store      *storage.Store
	tokenUsage *tokenusage.Accountant
	proxy      *proxy.Handler

	startedAt time.Time
}

// NewServer wires the proxy route and every dashboard endpoint onto a fresh
// Echo instance.
func NewServer(cfg *config.Config, store *storage.Store, tokenUsage *tokenusage.Accountant, proxyHandler *proxy.Handler) *Server {
	e := echo.New()

	s := &Server{
		echo:       e,
		cfg:        cfg,
		store:      store,
		tokenUsage: tokenUsage,
		proxy:      proxyHandler,
		startedAt:  time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers the client-facing proxy route and the dashboard's
// Read/Control API.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(16 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	// Client-facing LLM surface: the proxy handler owns its own client-auth
	// step (§4.D AUTHED), separate from the dashboard's shared-secret auth.
	s.proxy.RegisterRoutes(s.echo)

	dash := s.echo.Group("", s.dashboardAuth())
	dash.GET("/token-stats", s.tokenStatsHandler)
	dash.GET("/api/requests", s.listRequestsHandler)
	dash.GET("/api/requests/:id", s.getRequestHandler)
	dash.GET("/api/conversations", s.listConversationsHandler)
	dash.GET("/api/conversations/:id", s.getConversationHandler)
	dash.GET("/api/token-usage/current", s.tokenUsageCurrentHandler)
	dash.GET("/api/token-usage/daily", s.tokenUsageDailyHandler)
	dash.POST("/api/analyses", s.createAnalysisHandler)
	dash.GET("/api/analyses/:conversationId/:branchId", s.getAnalysisHandler)
	dash.POST("/api/analyses/:conversationId/:branchId/regenerate", s.regenerateAnalysisHandler)
}

// Start starts the HTTP server on addr (non-blocking on the caller, blocking
// on the goroutine that calls it).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  0, // streaming responses can run for the duration of §4.D's server timeout
		WriteTimeout: 0,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server, letting in-flight
// requests drain up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health. Unauthenticated: it is the only
// endpoint an orchestrator's liveness probe can reach without the
// dashboard's shared secret.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	if s.store != nil {
		if err := s.store.Health(reqCtx); err != nil {
			status = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
				Status:  status,
				Uptime:  time.Since(s.startedAt).Seconds(),
				Version: version.Full(),
			})
		}
	}

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  status,
		Uptime:  time.Since(s.startedAt).Seconds(),
		Version: version.Full(),
	})
}
