// Package upstream is the HTTP transport to the upstream LLM provider: a
// thin client that dispatches the client's request body untouched and
// hands back either a buffered response or a streaming body for the
// caller to tee.
package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Config configures how requests are dispatched to the upstream provider.
type Config struct {
	BaseURL            string
	APIKeyHeader       string
	OAuthBetaHeader    string
	OAuthBetaHeaderVal string
	Timeout            time.Duration
}

// Client dispatches message-completion requests to the upstream provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client. The underlying http.Client has no per-request
// timeout set directly; callers are expected to bound ctx instead, since a
// streaming call must stay open for the full SSE session.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: http.DefaultTransport,
		},
	}
}

// Auth describes how to authenticate the outbound call, composed by the
// caller from a resolved credential.
type Auth struct {
	APIKey      string // set for TypeAPIKey credentials
	BearerToken string // set for TypeOAuth credentials
}

// Request is a single upstream dispatch.
type Request struct {
	Path   string // e.g. "/v1/messages"
	Body   []byte
	Auth   Auth
	Accept string // "application/json" or "text/event-stream"
}

// Response wraps the upstream's HTTP response. Body must be closed by the
// caller once fully drained.
type Response struct {
	StatusCode        int
	Header            http.Header
	Body              io.ReadCloser
	UpstreamRequestID string
}

// Dispatch sends req to the upstream provider and returns its response
// unread. Streaming responses are returned with an open Body for the
// caller's SSE tee loop; buffered (non-streaming) responses are likewise
// returned with an open Body — the caller decides how much to read.
func (c *Client) Dispatch(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	c.setAuthHeaders(httpReq, req.Auth)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:        resp.StatusCode,
		Header:            resp.Header,
		Body:              resp.Body,
		UpstreamRequestID: resp.Header.Get("request-id"),
	}, nil
}

func (c *Client) setAuthHeaders(req *http.Request, auth Auth) {
	switch {
	case auth.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+auth.BearerToken)
		if c.cfg.OAuthBetaHeader != "" {
			req.Header.Set(c.cfg.OAuthBetaHeader, c.cfg.OAuthBetaHeaderVal)
		}
	case auth.APIKey != "":
		header := c.cfg.APIKeyHeader
		if header == "" {
			header = "x-api-key"
		}
		req.Header.Set(header, auth.APIKey)
	}
}
