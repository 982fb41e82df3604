package analysis

import (
	"context"
	"encoding/json"

	"github.com/cenkalti/backoff/v4"

	"github.com/tarsyio/llmproxy/pkg/analysisllm"
	"github.com/tarsyio/llmproxy/pkg/storage"
)

// runJob builds the transcript for a's conversation, calls the analysis
// model (retrying transient failures with exponential backoff), and
// assembles the result row. A model response that is not valid JSON is
// still a successful job: Content keeps the raw text and StructuredData is
// left nil, per §4.G step 5.
func (p *Pool) runJob(ctx context.Context, a *storage.Analysis) (*storage.AnalysisResult, error) {
	requests, err := p.store.GetConversation(ctx, a.ConversationID, a.BranchID)
	if err != nil {
		return nil, err
	}

	turns := make([]turn, 0, len(requests))
	for _, r := range requests {
		turns = append(turns, extractTurn(r.RequestBody, r.ResponseBody))
	}

	headCount := p.cfg.HeadMessages
	tailCount := p.cfg.TailMessages
	if headCount <= 0 {
		headCount = defaultHeadMessages
	}
	if tailCount <= 0 {
		tailCount = defaultTailMessages
	}
	maxTokens := p.cfg.MaxPromptTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxPromptTokens
	}

	transcript, truncated := buildTranscript(turns, p.counter, headCount, tailCount, maxTokens)

	userPrompt := transcript
	if a.CustomPrompt != nil && *a.CustomPrompt != "" {
		userPrompt = *a.CustomPrompt + "\n\n" + transcript
	}

	var resp *analysisllm.Response
	op := func() error {
		r, cerr := p.llm.Complete(ctx, analysisllm.Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
		})
		if cerr != nil {
			return cerr
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoffFor(p.cfg.Timeout), ctx)); err != nil {
		return nil, err
	}

	var structured json.RawMessage
	var data StructuredData
	if json.Unmarshal([]byte(resp.Content), &data) == nil {
		if encoded, merr := json.Marshal(data); merr == nil {
			structured = encoded
		}
	}

	return &storage.AnalysisResult{
		ID:               a.ID,
		ModelName:        resp.ModelName,
		Content:          resp.Content,
		StructuredData:   structured,
		PromptTruncated:  truncated,
		PromptTokens:     resp.InputTokens,
		CompletionTokens: resp.OutputTokens,
	}, nil
}

// appendAudit records a lifecycle event for a on the analysis audit log.
// Audit failures never fail the job itself; callers log and continue.
func (p *Pool) appendAudit(ctx context.Context, a *storage.Analysis, action string, details map[string]any) error {
	var detailsJSON json.RawMessage
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = encoded
	}

	id := a.ID
	return p.store.AppendAudit(ctx, &storage.AuditEntry{
		ConversationID: a.ConversationID,
		BranchID:       a.BranchID,
		Action:         action,
		Actor:          "analysis_worker",
		DetailsJSON:    detailsJSON,
		AnalysisID:     &id,
	})
}
