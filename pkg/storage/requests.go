package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertRequestSQL = `
INSERT INTO api_requests (
	request_id, domain, account_id, timestamp, upstream_model, request_type,
	request_body, streaming, conversation_id, branch_id, message_count,
	parent_request_id, current_message_hash, parent_message_hash, system_hash,
	parent_task_request_id, is_subtask, task_tool_invocation
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`

// InsertRequest persists the pre-response row for a newly received request
// (§4.D step DISPATCHED), with every field known before the upstream call
// completes.
func (s *Store) InsertRequest(ctx context.Context, r *Request) error {
	defer s.logSlow("insert_request", time.Now())
	_, err := s.pool.Exec(ctx, insertRequestSQL,
		r.RequestID, r.Domain, r.AccountID, r.Timestamp, r.UpstreamModel, r.RequestType,
		r.RequestBody, r.Streaming, r.ConversationID, r.BranchID, r.MessageCount,
		r.ParentRequestID, r.CurrentMessageHash, r.ParentMessageHash, r.SystemHash,
		r.ParentTaskRequestID, r.IsSubtask, r.TaskToolInvocation,
	)
	return err
}

// RequestPatch carries the fields filled in exactly once when the upstream
// call completes (§3 Request lifecycle).
type RequestPatch struct {
	RequestID uuid.UUID

	ResponseBody []byte

	InputTokens         *int64
	OutputTokens        *int64
	TotalTokens         *int64
	CacheCreationTokens *int64
	CacheReadTokens     *int64

	FirstTokenMS *int64
	DurationMS   *int64

	ErrorText         *string
	ErrorKind         *string
	HTTPStatusCode    *int
	UpstreamRequestID *string
	ToolCallCount     int
}

const patchRequestSQL = `
UPDATE api_requests SET
	response_body = $2,
	input_tokens = $3, output_tokens = $4, total_tokens = $5,
	cache_creation_tokens = $6, cache_read_tokens = $7,
	first_token_ms = $8, duration_ms = $9,
	error_text = $10, error_kind = $11, http_status_code = $12,
	upstream_request_id = $13, tool_call_count = $14
WHERE request_id = $1
`

// PatchRequest applies the post-response patch (§4.D step COMPLETED/FAILED).
func (s *Store) PatchRequest(ctx context.Context, p *RequestPatch) error {
	defer s.logSlow("patch_request", time.Now())
	_, err := s.pool.Exec(ctx, patchRequestSQL,
		p.RequestID, p.ResponseBody,
		p.InputTokens, p.OutputTokens, p.TotalTokens,
		p.CacheCreationTokens, p.CacheReadTokens,
		p.FirstTokenMS, p.DurationMS,
		p.ErrorText, p.ErrorKind, p.HTTPStatusCode,
		p.UpstreamRequestID, p.ToolCallCount,
	)
	return err
}

const requestColumns = `
	request_id, domain, account_id, timestamp, upstream_model, request_type,
	request_body, response_body, streaming,
	input_tokens, output_tokens, total_tokens, cache_creation_tokens, cache_read_tokens,
	first_token_ms, duration_ms, error_text, error_kind, http_status_code,
	upstream_request_id, tool_call_count,
	conversation_id, branch_id, message_count, parent_request_id,
	current_message_hash, parent_message_hash, system_hash,
	parent_task_request_id, is_subtask, task_tool_invocation, created_at
`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.RequestID, &r.Domain, &r.AccountID, &r.Timestamp, &r.UpstreamModel, &r.RequestType,
		&r.RequestBody, &r.ResponseBody, &r.Streaming,
		&r.InputTokens, &r.OutputTokens, &r.TotalTokens, &r.CacheCreationTokens, &r.CacheReadTokens,
		&r.FirstTokenMS, &r.DurationMS, &r.ErrorText, &r.ErrorKind, &r.HTTPStatusCode,
		&r.UpstreamRequestID, &r.ToolCallCount,
		&r.ConversationID, &r.BranchID, &r.MessageCount, &r.ParentRequestID,
		&r.CurrentMessageHash, &r.ParentMessageHash, &r.SystemHash,
		&r.ParentTaskRequestID, &r.IsSubtask, &r.TaskToolInvocation, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRequest returns the full row for a single request id, used by the
// Read API's request-detail endpoint.
func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	defer s.logSlow("get_request", time.Now())
	row := s.pool.QueryRow(ctx, "SELECT "+requestColumns+" FROM api_requests WHERE request_id = $1", id)
	return scanRequest(row)
}

// RequestFilter narrows a ListRequests call; zero-valued fields are
// unfiltered.
type RequestFilter struct {
	Domain string
	Model  string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// ListRequests returns a page of request summaries ordered most-recent
// first, matching the Read API's paginated listing contract.
func (s *Store) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	defer s.logSlow("list_requests", time.Now())

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM api_requests
		WHERE ($1 = '' OR domain = $1)
		  AND ($2 = '' OR upstream_model = $2)
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		  AND ($4::timestamptz IS NULL OR timestamp <= $4)
		ORDER BY timestamp DESC
		LIMIT $5 OFFSET $6
	`, f.Domain, f.Model, nullableTime(f.From), nullableTime(f.To), limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FindParentByCurrentHash implements the Conversation Linker's parent
// lookup: the most recent prior request in the tenant whose
// current_message_hash equals parentHash, bounded to the tenant's most
// recent 10,000 requests or 14 days, whichever is smaller. Ties break by
// most-recent timestamp then by largest request id.
func (s *Store) FindParentByCurrentHash(ctx context.Context, domain, parentHash string) (*Request, error) {
	defer s.logSlow("find_parent_by_hash", time.Now())
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM (
			SELECT * FROM api_requests
			WHERE domain = $1 AND timestamp >= now() - interval '14 days'
			ORDER BY timestamp DESC
			LIMIT 10000
		) recent
		WHERE current_message_hash = $2
		ORDER BY timestamp DESC, request_id DESC
		LIMIT 1
	`, domain, parentHash)

	r, err := scanRequest(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// CountChildrenOf reports how many existing requests already claim
// candidate as their parent, used to detect a branch point.
func (s *Store) CountChildrenOf(ctx context.Context, parentRequestID uuid.UUID) (int, error) {
	defer s.logSlow("count_children", time.Now())
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM api_requests WHERE parent_request_id = $1`, parentRequestID).Scan(&n)
	return n, err
}

// FindSubtaskCandidates implements the sub-task look-back: within the
// trailing window, find requests in the tenant whose response body
// contains a Task tool-use block. The JSON-containment predicate runs
// server-side against the GIN index on response_body; the caller still
// inspects candidates in Go to match the normalized prompt text exactly,
// since containment alone cannot express whitespace normalization.
func (s *Store) FindSubtaskCandidates(ctx context.Context, domain string, since time.Time) ([]*Request, error) {
	defer s.logSlow("find_subtask_candidates", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM api_requests
		WHERE domain = $1
		  AND timestamp >= $2
		  AND response_body @> '{"content":[{"type":"tool_use","name":"Task"}]}'::jsonb
		ORDER BY timestamp DESC
	`, domain, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountSubtasksOf returns how many existing requests already claim
// candidate as their sub-task parent, used to number branch_id "subtask_k".
func (s *Store) CountSubtasksOf(ctx context.Context, parentTaskRequestID uuid.UUID) (int, error) {
	defer s.logSlow("count_subtasks", time.Now())
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM api_requests WHERE parent_task_request_id = $1`, parentTaskRequestID).Scan(&n)
	return n, err
}
