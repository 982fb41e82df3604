package analysis

import (
	"context"
	"time"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// worker polls the store for claimed work and processes one job at a time.
type worker struct {
	id   int
	pool *Pool
}

func (w *worker) run(ctx context.Context) {
	interval := w.pool.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pool.stopCh:
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *worker) pollOnce(ctx context.Context) {
	claimed, err := w.pool.store.ClaimNext(ctx, 1)
	if err != nil {
		w.pool.log.Warn("claim failed", "worker", w.id, "error", err)
		return
	}
	for _, a := range claimed {
		w.process(ctx, a)
	}
}

func (w *worker) process(ctx context.Context, a *storage.Analysis) {
	log := w.pool.log.With("analysis_id", a.ID, "conversation_id", a.ConversationID, "branch_id", a.BranchID)

	if err := w.pool.appendAudit(ctx, a, "claimed", nil); err != nil {
		log.Warn("failed to append audit entry", "error", err)
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if w.pool.cfg.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.pool.cfg.Timeout)
		defer cancel()
	}

	result, err := w.pool.runJob(jobCtx, a)
	if err != nil {
		log.Warn("analysis job failed", "error", err)
		if rerr := w.pool.store.RetryOrFailAnalysis(ctx, a.ID, err.Error(), w.pool.cfg.MaxRetries); rerr != nil {
			log.Error("failed to record analysis failure", "error", rerr)
		}
		if aerr := w.pool.appendAudit(ctx, a, "failed", map[string]any{"error": err.Error()}); aerr != nil {
			log.Warn("failed to append audit entry", "error", aerr)
		}
		return
	}

	if err := w.pool.store.CompleteAnalysis(ctx, result); err != nil {
		log.Error("failed to persist completed analysis", "error", err)
		return
	}
	if aerr := w.pool.appendAudit(ctx, a, "completed", nil); aerr != nil {
		log.Warn("failed to append audit entry", "error", aerr)
	}
}
