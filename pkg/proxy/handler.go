package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tarsyio/llmproxy/pkg/credential"
	"github.com/tarsyio/llmproxy/pkg/hasher"
	"github.com/tarsyio/llmproxy/pkg/linker"
	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/upstream"
)

// RegisterRoutes wires the client-facing LLM surface onto e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/messages", h.ServeMessages)
}

// ServeMessages implements the full §4.D state machine for one inbound
// request.
func (h *Handler) ServeMessages(c *echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	requestID := uuid.New()
	tenant := tenantFromHost(c.Request().Host)
	log := h.log.With("request_id", requestID, "tenant", tenant)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return h.writeError(c, KindInvalidRequest, "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return h.writeError(c, KindInvalidRequest, "request body too large")
	}

	reqType := classifyRequestType(body)
	if reqType == storage.RequestTypeHealthCheck {
		return c.NoContent(http.StatusOK)
	}

	// AUTHED
	if h.cfg.EnableClientAuth {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if err := h.credentials.ValidateClientAuth(tenant, token); err != nil {
			kind, msg := classifyCredentialError(err)
			return h.writeError(c, kind, msg)
		}
	}

	// RESOLVED
	cred, err := h.credentials.Resolve(ctx, tenant)
	if err != nil {
		kind, msg := classifyCredentialError(err)
		return h.writeError(c, kind, msg)
	}
	auth := upstreamAuthFor(cred)

	// DISPATCHED
	messages, systemPrompt, firstUserMessage := parseHashInput(body)
	hres := hasher.Hash(messages, systemPrompt)

	streaming := gjson.GetBytes(body, "stream").Bool()
	model := gjson.GetBytes(body, "model").String()

	// Conversation linkage and persistence are only meaningful when storage
	// is enabled (§6 storage_enabled: "disables persistence entirely, the
	// proxy still forwards"); skip the linker look-back and write-pipeline
	// enqueue entirely rather than compute linkage for a row nobody stores.
	if h.cfg.StorageEnabled {
		linkRes := h.linker.Link(ctx, linker.Input{
			Domain:             tenant,
			Timestamp:          start,
			CurrentMessageHash: hres.CurrentMessageHash,
			ParentMessageHash:  hres.ParentMessageHash,
			SystemHash:         hres.SystemHash,
			FirstUserMessage:   firstUserMessage,
		})

		conversationID := linkRes.ConversationID
		branchID := linkRes.BranchID
		row := &storage.Request{
			RequestID:           requestID,
			Domain:              tenant,
			AccountID:           cred.AccountID,
			Timestamp:           start,
			UpstreamModel:       model,
			RequestType:         reqType,
			RequestBody:         body,
			Streaming:           streaming,
			ConversationID:      &conversationID,
			BranchID:            &branchID,
			MessageCount:        linkRes.MessageCount,
			ParentRequestID:     linkRes.ParentRequestID,
			CurrentMessageHash:  stringPtr(hres.CurrentMessageHash),
			ParentMessageHash:   nilIfEmpty(hres.ParentMessageHash),
			SystemHash:          stringPtr(hres.SystemHash),
			ParentTaskRequestID: linkRes.ParentTaskRequestID,
			IsSubtask:           linkRes.IsSubtask,
		}

		if err := h.writePipe.EnqueueInsertRequest(ctx, row); err != nil {
			log.Warn("failed to enqueue request insert", "error", err)
		}
	}

	upstreamCtx := ctx
	var cancel context.CancelFunc
	if h.cfg.UpstreamTimeout > 0 {
		upstreamCtx, cancel = context.WithTimeout(ctx, h.cfg.UpstreamTimeout)
		defer cancel()
	}

	accept := "application/json"
	if streaming {
		accept = "text/event-stream"
	}

	resp, err := h.upstream.Dispatch(upstreamCtx, upstream.Request{
		Path:   "/v1/messages",
		Body:   body,
		Auth:   auth,
		Accept: accept,
	})
	if err != nil {
		log.Warn("upstream dispatch failed", "error", err)
		h.finalize(ctx, requestID, start, nil, upstream.Usage{}, 0, http.StatusBadGateway, "", err.Error(), stringPtr(string(KindUpstreamError)))
		return h.writeError(c, KindUpstreamError, "upstream request failed")
	}

	if streaming && resp.StatusCode < 300 {
		return h.teeStream(c, requestID, start, reqType, resp)
	}
	return h.buffered(c, requestID, start, reqType, resp)
}

func (h *Handler) buffered(c *echo.Context, requestID uuid.UUID, start time.Time, reqType storage.RequestType, resp *upstream.Response) error {
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.finalize(c.Request().Context(), requestID, start, nil, upstream.Usage{}, 0, resp.StatusCode, resp.UpstreamRequestID, err.Error(), stringPtr(string(KindUpstreamError)))
		return h.writeError(c, KindUpstreamError, "upstream response read failed")
	}

	w := c.Response()
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	usage, _ := upstream.ParseUsageFromBody(respBody)
	toolCalls := upstream.CountToolUseBlocks(respBody)

	var errKind *string
	if resp.StatusCode >= 400 {
		errKind = stringPtr(string(kindForUpstreamStatus(resp.StatusCode)))
	}

	h.finalize(c.Request().Context(), requestID, start, nil, usage, toolCalls, resp.StatusCode, resp.UpstreamRequestID, "", errKind)
	return nil
}

// finalize persists the COMPLETED/FAILED patch for requestID, per §4.D step
// 6. Persistence errors here are recorded and swallowed: the client response
// has already been sent (or, for an upstream-dispatch failure, is about to
// be) and must never be blocked on write-pipeline health.
func (h *Handler) finalize(ctx context.Context, requestID uuid.UUID, start time.Time, firstTokenMS *int64, usage upstream.Usage, toolCalls int, statusCode int, upstreamRequestID, errText string, errKind *string) {
	if !h.cfg.StorageEnabled {
		return
	}

	durationMS := time.Since(start).Milliseconds()
	totalTokens := usage.InputTokens + usage.OutputTokens

	patch := &storage.RequestPatch{
		RequestID:           requestID,
		InputTokens:         int64Ptr(usage.InputTokens),
		OutputTokens:        int64Ptr(usage.OutputTokens),
		TotalTokens:         int64Ptr(totalTokens),
		CacheCreationTokens: int64Ptr(usage.CacheCreationTokens),
		CacheReadTokens:     int64Ptr(usage.CacheReadTokens),
		FirstTokenMS:        firstTokenMS,
		DurationMS:          &durationMS,
		HTTPStatusCode:      &statusCode,
		ToolCallCount:       toolCalls,
	}
	if upstreamRequestID != "" {
		patch.UpstreamRequestID = &upstreamRequestID
	}
	if errText != "" {
		redacted := h.masker.RedactStrict(errText)
		patch.ErrorText = &redacted
	}
	patch.ErrorKind = errKind

	if err := h.writePipe.EnqueuePatchRequest(ctx, patch); err != nil {
		h.log.Warn("failed to enqueue request patch", "request_id", requestID, "error", err)
	}
}

func (h *Handler) writeError(c *echo.Context, kind Kind, message string) error {
	return c.JSON(statusForKind(kind), newEnvelope(kind, h.masker.Redact(message)))
}

func kindForUpstreamStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindUpstreamError
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUpstreamAuth
	default:
		return KindUpstreamError
	}
}

func upstreamAuthFor(cred *credential.Credential) upstream.Auth {
	if cred.Type == credential.TypeOAuth && cred.OAuth != nil {
		return upstream.Auth{BearerToken: cred.OAuth.AccessToken}
	}
	return upstream.Auth{APIKey: cred.APIKey}
}

func isToolUseBlock(eventData []byte) bool {
	return gjson.GetBytes(eventData, "content_block.type").String() == "tool_use" ||
		gjson.GetBytes(eventData, "type").String() == "tool_use"
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmpty(s string) *string {
	return stringPtr(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}
