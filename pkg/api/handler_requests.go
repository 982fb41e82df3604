package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// RequestSummary is one row of the paginated request listing: everything
// about a request except its (potentially large) request/response bodies.
type RequestSummary struct {
	RequestID      uuid.UUID  `json:"request_id"`
	Domain         string     `json:"domain"`
	AccountID      string     `json:"account_id"`
	Timestamp      time.Time  `json:"timestamp"`
	UpstreamModel  string     `json:"upstream_model"`
	RequestType    string     `json:"request_type"`
	Streaming      bool       `json:"streaming"`
	InputTokens    *int64     `json:"input_tokens,omitempty"`
	OutputTokens   *int64     `json:"output_tokens,omitempty"`
	TotalTokens    *int64     `json:"total_tokens,omitempty"`
	FirstTokenMS   *int64     `json:"first_token_ms,omitempty"`
	DurationMS     *int64     `json:"duration_ms,omitempty"`
	ErrorKind      *string    `json:"error_kind,omitempty"`
	HTTPStatusCode *int       `json:"http_status_code,omitempty"`
	ToolCallCount  int        `json:"tool_call_count"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	BranchID       *string    `json:"branch_id,omitempty"`
	IsSubtask      bool       `json:"is_subtask"`
}

func summarize(r *storage.Request) *RequestSummary {
	return &RequestSummary{
		RequestID:      r.RequestID,
		Domain:         r.Domain,
		AccountID:      r.AccountID,
		Timestamp:      r.Timestamp,
		UpstreamModel:  r.UpstreamModel,
		RequestType:    string(r.RequestType),
		Streaming:      r.Streaming,
		InputTokens:    r.InputTokens,
		OutputTokens:   r.OutputTokens,
		TotalTokens:    r.TotalTokens,
		FirstTokenMS:   r.FirstTokenMS,
		DurationMS:     r.DurationMS,
		ErrorKind:      r.ErrorKind,
		HTTPStatusCode: r.HTTPStatusCode,
		ToolCallCount:  r.ToolCallCount,
		ConversationID: r.ConversationID,
		BranchID:       r.BranchID,
		IsSubtask:      r.IsSubtask,
	}
}

// RequestListResponse is the paginated envelope returned by
// GET /api/requests.
type RequestListResponse struct {
	Requests []*RequestSummary `json:"requests"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// listRequestsHandler handles GET /api/requests.
func (s *Server) listRequestsHandler(c *echo.Context) error {
	limit, offset := pageParams(c)

	f := storage.RequestFilter{
		Domain: c.QueryParam("domain"),
		Model:  c.QueryParam("model"),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.QueryParam("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}

	rows, err := s.store.ListRequests(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to list requests"))
	}

	out := make([]*RequestSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summarize(r))
	}
	return c.JSON(http.StatusOK, &RequestListResponse{Requests: out, Limit: limit, Offset: offset})
}

// RequestDetailResponse is the full row returned by GET /api/requests/:id,
// including its request/response bodies and every streaming chunk.
type RequestDetailResponse struct {
	*storage.Request
	Chunks []*storage.Chunk `json:"chunks,omitempty"`
}

// getRequestHandler handles GET /api/requests/:id.
func (s *Server) getRequestHandler(c *echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, newEnvelope("invalid_request_error", "malformed request id"))
	}

	ctx := c.Request().Context()
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, newEnvelope("not_found_error", "request not found"))
	}

	var chunks []*storage.Chunk
	if req.Streaming {
		chunks, err = s.store.ListChunks(ctx, id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, newEnvelope("internal_server_error", "failed to load chunks"))
		}
	}

	return c.JSON(http.StatusOK, &RequestDetailResponse{Request: req, Chunks: chunks})
}
