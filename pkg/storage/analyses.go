package storage

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// retryBackoff computes the delay before a failed job's row becomes
// re-claimable: base 2s, doubling per attempt, jittered +/-20%, capped at
// 60s, per the job-retry policy. attempt counts the retries already
// scheduled, so attempt 0 yields the 2s base.
func retryBackoff(attempt int) time.Duration {
	const (
		base    = 2 * time.Second
		factor  = 2.0
		maxWait = 60 * time.Second
	)
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	if d > float64(maxWait) {
		d = float64(maxWait)
	}
	jitter := d * (0.8 + 0.4*rand.Float64())
	return time.Duration(jitter)
}

// ErrAnalysisExists is returned by CreateAnalysis when a row for the
// (conversation, branch) pair already exists (§4.H: 409 with the existing
// row).
var ErrAnalysisExists = errors.New("analysis already exists")

// ErrAnalysisNotFound is returned when no row exists for a lookup.
var ErrAnalysisNotFound = errors.New("analysis not found")

const analysisColumns = `
	id, conversation_id, branch_id, status, model_name, content, structured_data,
	prompt_truncated, error_text, retry_count, prompt_tokens, completion_tokens,
	custom_prompt, created_at, updated_at, generated_at, completed_at, next_retry_at
`

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	err := row.Scan(
		&a.ID, &a.ConversationID, &a.BranchID, &a.Status, &a.ModelName, &a.Content, &a.StructuredData,
		&a.PromptTruncated, &a.ErrorText, &a.RetryCount, &a.PromptTokens, &a.CompletionTokens,
		&a.CustomPrompt, &a.CreatedAt, &a.UpdatedAt, &a.GeneratedAt, &a.CompletedAt, &a.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAnalysis inserts a new pending row for (conversationID, branchID).
// If one already exists, it returns ErrAnalysisExists along with the
// existing row so the caller can answer with 409.
func (s *Store) CreateAnalysis(ctx context.Context, conversationID uuid.UUID, branchID string, customPrompt *string) (*Analysis, error) {
	defer s.logSlow("create_analysis", time.Now())

	existing, err := s.GetAnalysis(ctx, conversationID, branchID)
	if err == nil {
		return existing, ErrAnalysisExists
	}
	if !errors.Is(err, ErrAnalysisNotFound) {
		return nil, err
	}

	a := &Analysis{
		ID:             uuid.New(),
		ConversationID: conversationID,
		BranchID:       branchID,
		Status:         AnalysisPending,
		CustomPrompt:   customPrompt,
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_analyses (id, conversation_id, branch_id, status, custom_prompt)
		VALUES ($1,$2,$3,$4,$5)
	`, a.ID, a.ConversationID, a.BranchID, a.Status, a.CustomPrompt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAnalysis returns the current row for (conversationID, branchID).
func (s *Store) GetAnalysis(ctx context.Context, conversationID uuid.UUID, branchID string) (*Analysis, error) {
	defer s.logSlow("get_analysis", time.Now())
	row := s.pool.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM conversation_analyses
		WHERE conversation_id = $1 AND branch_id = $2
	`, conversationID, branchID)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

// ClaimNext selects up to maxRows pending analyses, oldest first, skipping
// rows already locked by another worker instance, and atomically marks
// them processing. Grounded on the transactional claim idiom used to hand
// out queued work items one at a time across cooperating instances.
func (s *Store) ClaimNext(ctx context.Context, maxRows int) ([]*Analysis, error) {
	defer s.logSlow("claim_next_analysis", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM conversation_analyses
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, maxRows)
	if err != nil {
		return nil, err
	}

	var claimed []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range claimed {
		if _, err := tx.Exec(ctx, `
			UPDATE conversation_analyses SET status = 'processing', updated_at = now() WHERE id = $1
		`, a.ID); err != nil {
			return nil, err
		}
		a.Status = AnalysisProcessing
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// AnalysisResult carries the outcome of a completed analysis job.
type AnalysisResult struct {
	ID              uuid.UUID
	ModelName       string
	Content         string
	StructuredData  []byte // nil when the model's output wasn't valid JSON
	PromptTruncated bool
	PromptTokens    int64
	CompletionTokens int64
}

// CompleteAnalysis marks a claimed row completed with its result.
func (s *Store) CompleteAnalysis(ctx context.Context, r *AnalysisResult) error {
	defer s.logSlow("complete_analysis", time.Now())
	_, err := s.pool.Exec(ctx, `
		UPDATE conversation_analyses SET
			status = 'completed', model_name = $2, content = $3, structured_data = $4,
			prompt_truncated = $5, prompt_tokens = $6, completion_tokens = $7,
			generated_at = now(), completed_at = now(), updated_at = now()
		WHERE id = $1
	`, r.ID, r.ModelName, r.Content, r.StructuredData, r.PromptTruncated, r.PromptTokens, r.CompletionTokens)
	return err
}

// RetryOrFailAnalysis implements the §4.G retry/backoff decision: on error
// it increments retry_count and either resets the row to pending with a
// backed-off next_retry_at (when under MAX_RETRIES) or marks it failed.
func (s *Store) RetryOrFailAnalysis(ctx context.Context, id uuid.UUID, errText string, maxRetries int) error {
	defer s.logSlow("retry_or_fail_analysis", time.Now())

	a, err := s.getAnalysisByID(ctx, id)
	if err != nil {
		return err
	}
	nextAttempt := int(a.RetryCount) + 1

	var nextRetryAt *time.Time
	if nextAttempt <= maxRetries {
		t := time.Now().Add(retryBackoff(nextAttempt - 1))
		nextRetryAt = &t
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE conversation_analyses SET
			retry_count = retry_count + 1,
			error_text = $2,
			status = CASE WHEN retry_count + 1 <= $3 THEN 'pending' ELSE 'failed' END,
			next_retry_at = $4,
			updated_at = now()
		WHERE id = $1
	`, id, errText, maxRetries, nextRetryAt)
	return err
}

func (s *Store) getAnalysisByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM conversation_analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

// SweepStuck transitions rows stuck in processing longer than threshold
// back to pending (incrementing retry_count), or to failed once
// retry_count exceeds maxRetries.
func (s *Store) SweepStuck(ctx context.Context, threshold time.Duration, maxRetries int) (int64, error) {
	defer s.logSlow("sweep_stuck_analyses", time.Now())
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversation_analyses SET
			retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 <= $2 THEN 'pending' ELSE 'failed' END,
			next_retry_at = NULL,
			updated_at = now()
		WHERE status = 'processing' AND updated_at < now() - make_interval(secs => $1)
	`, threshold.Seconds(), maxRetries)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Regenerate atomically deletes the existing row for (conversationID,
// branchID), if any, and inserts a fresh pending one, per §4.G
// regeneration.
func (s *Store) Regenerate(ctx context.Context, conversationID uuid.UUID, branchID string, customPrompt *string) (*Analysis, error) {
	defer s.logSlow("regenerate_analysis", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_analyses WHERE conversation_id = $1 AND branch_id = $2`, conversationID, branchID); err != nil {
		return nil, err
	}

	a := &Analysis{
		ID:             uuid.New(),
		ConversationID: conversationID,
		BranchID:       branchID,
		Status:         AnalysisPending,
		CustomPrompt:   customPrompt,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO conversation_analyses (id, conversation_id, branch_id, status, custom_prompt)
		VALUES ($1,$2,$3,$4,$5)
	`, a.ID, a.ConversationID, a.BranchID, a.Status, a.CustomPrompt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// AppendAudit records an append-only audit entry for an analysis lifecycle
// event.
func (s *Store) AppendAudit(ctx context.Context, e *AuditEntry) error {
	defer s.logSlow("append_audit", time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_audit_log (conversation_id, branch_id, action, actor, details_json, analysis_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ConversationID, e.BranchID, e.Action, e.Actor, e.DetailsJSON, e.AnalysisID)
	return err
}
