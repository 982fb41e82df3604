package proxy

import (
	"bufio"
	"context"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/upstream"
)

// hopByHopHeaders are stripped when copying the upstream response's headers
// onto the client response; the framework sets these itself.
var hopByHopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
}

func copyHeaders(dst, src map[string][]string) {
	for k, values := range src {
		if hopByHopHeaders[k] {
			continue
		}
		for _, v := range values {
			dst[k] = append(dst[k], v)
		}
	}
}

// teeStream implements §4.D step 5's streaming branch: bytes are piped to
// the client untransformed while every parsed SSE record is simultaneously
// queued to the Write Pipeline as a Chunk, the "reader loop feeding two
// sinks" idiom. A client disconnect mid-stream still flushes the
// accumulated chunks and finalizes the Request as FAILED/client_cancelled.
func (h *Handler) teeStream(c *echo.Context, requestID uuid.UUID, start time.Time, reqType storage.RequestType, resp *upstream.Response) error {
	w := c.Response()
	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(resp.StatusCode)

	ctx := c.Request().Context()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(upstream.ScanSSERecords)

	var (
		chunkIndex        int
		firstByte         time.Time
		usage             upstream.Usage
		toolCalls         int
		clientDisconnected bool
		sawMessageStop    bool
	)

	for scanner.Scan() {
		raw := scanner.Bytes()
		record := make([]byte, len(raw))
		copy(record, raw)

		if firstByte.IsZero() {
			firstByte = time.Now()
		}

		if _, werr := w.Write(record); werr != nil {
			clientDisconnected = true
			break
		}
		w.Flush()

		ev := upstream.ParseEvent(record)
		switch ev.Type {
		case upstream.EventContentBlockStart, upstream.EventMessageStart, upstream.EventMessageDelta:
			if u, ok := upstream.ParseUsage(ev.Data); ok {
				usage = mergeUsage(usage, u)
			}
			if ev.Type == upstream.EventContentBlockStart && isToolUseBlock(ev.Data) {
				toolCalls++
			}
		case upstream.EventMessageStop:
			sawMessageStop = true
		}

		if h.cfg.StorageEnabled {
			chunk := &storage.Chunk{
				RequestID:  requestID,
				ChunkIndex: chunkIndex,
				Timestamp:  time.Now(),
				Data:       record,
			}
			if err := h.writePipe.EnqueueChunk(ctx, chunk); err != nil {
				h.log.Warn("failed to enqueue stream chunk", "request_id", requestID, "error", err)
			}
		}
		chunkIndex++
	}

	scanErr := scanner.Err()
	resp.Body.Close()

	var firstTokenMS *int64
	if !firstByte.IsZero() {
		ms := firstByte.Sub(start).Milliseconds()
		firstTokenMS = &ms
	}

	if clientDisconnected || (scanErr != nil && ctx.Err() != nil) {
		h.finalize(context.Background(), requestID, start, firstTokenMS, usage, toolCalls, resp.StatusCode, resp.UpstreamRequestID, "client disconnected during streaming", stringPtr(string(KindClientCancelled)))
		return nil
	}

	if scanErr != nil {
		h.finalize(ctx, requestID, start, firstTokenMS, usage, toolCalls, resp.StatusCode, resp.UpstreamRequestID, scanErr.Error(), stringPtr(string(KindUpstreamError)))
		return nil
	}

	// §9 open question: a 200 response whose SSE stream ends without a
	// message_stop event is a truncated stream, not a clean completion.
	// Finalize as FAILED/upstream_error with whatever chunks were received.
	if !sawMessageStop {
		h.finalize(ctx, requestID, start, firstTokenMS, usage, toolCalls, resp.StatusCode, resp.UpstreamRequestID, "stream ended without message_stop", stringPtr(string(KindUpstreamError)))
		return nil
	}

	h.finalize(ctx, requestID, start, firstTokenMS, usage, toolCalls, resp.StatusCode, resp.UpstreamRequestID, "", nil)
	return nil
}

func mergeUsage(acc, u upstream.Usage) upstream.Usage {
	if u.InputTokens > 0 {
		acc.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		acc.OutputTokens = u.OutputTokens
	}
	if u.CacheCreationTokens > 0 {
		acc.CacheCreationTokens = u.CacheCreationTokens
	}
	if u.CacheReadTokens > 0 {
		acc.CacheReadTokens = u.CacheReadTokens
	}
	return acc
}
