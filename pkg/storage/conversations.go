package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is one row of the Read API's conversation listing:
// the logical grouping of requests sharing a conversation_id and
// branch_id, computed at query time rather than stored.
type ConversationSummary struct {
	ConversationID uuid.UUID
	BranchID       string
	Domain         string
	AccountID      string
	RequestCount   int
	IsSubtask      bool
	FirstSeen      time.Time
	LastSeen       time.Time
}

// ConversationFilter narrows a ListConversations call.
type ConversationFilter struct {
	Domain          string
	AccountID       string
	ExcludeSubtasks bool
	Limit           int
	Offset          int
}

// ListConversations returns a page of conversation summaries, most
// recently active first.
func (s *Store) ListConversations(ctx context.Context, f ConversationFilter) ([]*ConversationSummary, error) {
	defer s.logSlow("list_conversations", time.Now())

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			conversation_id, branch_id,
			max(domain) AS domain,
			max(account_id) AS account_id,
			count(*) AS request_count,
			bool_or(is_subtask) AS is_subtask,
			min(timestamp) AS first_seen,
			max(timestamp) AS last_seen
		FROM api_requests
		WHERE conversation_id IS NOT NULL
		  AND ($1 = '' OR domain = $1)
		  AND ($2 = '' OR account_id = $2)
		  AND ($3 = false OR NOT is_subtask)
		GROUP BY conversation_id, branch_id
		ORDER BY max(timestamp) DESC
		LIMIT $4 OFFSET $5
	`, f.Domain, f.AccountID, f.ExcludeSubtasks, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		if err := rows.Scan(&c.ConversationID, &c.BranchID, &c.Domain, &c.AccountID, &c.RequestCount, &c.IsSubtask, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetConversationAll returns every request across all branches of a
// conversation, oldest first, used to build the Read API's branch map for
// the conversation-detail endpoint.
func (s *Store) GetConversationAll(ctx context.Context, conversationID uuid.UUID) ([]*Request, error) {
	defer s.logSlow("get_conversation_all", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM api_requests
		WHERE conversation_id = $1
		ORDER BY timestamp ASC
	`, conversationID)
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

// GetConversation returns every request in a single conversation/branch,
// oldest first, used by the Analysis Worker to load the branch it analyzes.
func (s *Store) GetConversation(ctx context.Context, conversationID uuid.UUID, branchID string) ([]*Request, error) {
	defer s.logSlow("get_conversation", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM api_requests
		WHERE conversation_id = $1 AND branch_id = $2
		ORDER BY timestamp ASC
	`, conversationID, branchID)
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
