package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// ConversationListResponse is the paginated envelope returned by
// GET /api/conversations.
type ConversationListResponse struct {
	Conversations []*storage.ConversationSummary `json:"conversations"`
	Limit         int                            `json:"limit"`
	Offset        int                            `json:"offset"`
}

// listConversationsHandler handles GET /api/conversations.
func (s *Server) listConversationsHandler(c *echo.Context) error {
	limit, offset := pageParams(c)

	rows, err := s.store.ListConversations(c.Request().Context(), storage.ConversationFilter{
		Domain:          c.QueryParam("domain"),
		AccountID:       c.QueryParam("accountId"),
		ExcludeSubtasks: c.QueryParam("excludeSubtasks") == "true",
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to list conversations"))
	}

	return c.JSON(http.StatusOK, &ConversationListResponse{Conversations: rows, Limit: limit, Offset: offset})
}

// ConversationDetailResponse is returned by GET /api/conversations/:id: a
// branch map (branch id -> requests, oldest first) plus the flattened
// request list across every branch.
type ConversationDetailResponse struct {
	ConversationID uuid.UUID                  `json:"conversation_id"`
	Branches       map[string][]*RequestSummary `json:"branches"`
	Requests       []*RequestSummary          `json:"requests"`
}

// getConversationHandler handles GET /api/conversations/:id.
func (s *Server) getConversationHandler(c *echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed conversation id"))
	}

	rows, err := s.store.GetConversationAll(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to load conversation"))
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, newEnvelope("not_found_error", "conversation not found"))
	}

	branches := make(map[string][]*RequestSummary)
	all := make([]*RequestSummary, 0, len(rows))
	for _, r := range rows {
		sum := summarize(r)
		all = append(all, sum)
		branch := "main"
		if r.BranchID != nil {
			branch = *r.BranchID
		}
		branches[branch] = append(branches[branch], sum)
	}

	return c.JSON(http.StatusOK, &ConversationDetailResponse{
		ConversationID: id,
		Branches:       branches,
		Requests:       all,
	})
}
