package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// CreateAnalysisRequest is the body of POST /api/analyses.
type CreateAnalysisRequest struct {
	ConversationID string  `json:"conversationId"`
	BranchID       string  `json:"branchId"`
	CustomPrompt   *string `json:"customPrompt"`
}

// createAnalysisHandler handles POST /api/analyses. Returns 201 with a
// pending row, or 409 with the existing row, per §4.H.
func (s *Server) createAnalysisHandler(c *echo.Context) error {
	var req CreateAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed body"))
	}
	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed conversationId"))
	}
	branch := req.BranchID
	if branch == "" {
		branch = "main"
	}

	ctx := c.Request().Context()
	a, err := s.store.CreateAnalysis(ctx, convID, branch, req.CustomPrompt)
	if errors.Is(err, storage.ErrAnalysisExists) {
		return c.JSON(http.StatusConflict, a)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to create analysis"))
	}

	_ = s.store.AppendAudit(ctx, &storage.AuditEntry{
		ConversationID: convID,
		BranchID:       branch,
		Action:         "created",
		Actor:          dashboardActor(c),
		AnalysisID:     &a.ID,
	})

	return c.JSON(http.StatusCreated, a)
}

// getAnalysisHandler handles GET /api/analyses/:conversationId/:branchId.
func (s *Server) getAnalysisHandler(c *echo.Context) error {
	convID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed conversationId"))
	}
	branch := c.Param("branchId")

	a, err := s.store.GetAnalysis(c.Request().Context(), convID, branch)
	if errors.Is(err, storage.ErrAnalysisNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, newEnvelope("not_found_error", "analysis not found"))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to load analysis"))
	}
	return c.JSON(http.StatusOK, a)
}

// regenerateAnalysisHandler handles
// POST /api/analyses/:conversationId/:branchId/regenerate.
func (s *Server) regenerateAnalysisHandler(c *echo.Context) error {
	convID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed conversationId"))
	}
	branch := c.Param("branchId")

	var body struct {
		CustomPrompt *string `json:"customPrompt"`
	}
	_ = c.Bind(&body) // an empty/absent body is valid: regeneration with no override prompt

	ctx := c.Request().Context()
	a, err := s.store.Regenerate(ctx, convID, branch, body.CustomPrompt)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to regenerate analysis"))
	}

	_ = s.store.AppendAudit(ctx, &storage.AuditEntry{
		ConversationID: convID,
		BranchID:       branch,
		Action:         "regenerated",
		Actor:          dashboardActor(c),
		AnalysisID:     &a.ID,
	})

	return c.JSON(http.StatusOK, a)
}

// dashboardActor identifies who triggered an audited action, preferring an
// upstream proxy's forwarded-identity headers over a generic fallback.
func dashboardActor(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.Request().Header.Get("X-Forwarded-Email"); email != "" {
		return email
	}
	return "dashboard"
}
