package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tarsyio/llmproxy/pkg/analysisllm"
	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/tokenizer"
)

// Pool runs MaxConcurrentJobs worker goroutines that poll the store for
// pending analyses, plus a background sweep that recovers rows stuck in
// "processing" past their threshold.
type Pool struct {
	store   *storage.Store
	llm     analysisllm.Client
	counter *tokenizer.Counter
	cfg     Config
	log     *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	started bool
}

// NewPool constructs a Pool. Callers must call Start to begin processing.
func NewPool(store *storage.Store, llm analysisllm.Client, counter *tokenizer.Counter, cfg Config) *Pool {
	return &Pool{
		store:   store,
		llm:     llm,
		counter: counter,
		cfg:     cfg,
		log:     slog.With("component", "analysis_worker"),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the configured number of worker goroutines and the stuck
// job sweep. Safe to call once; a second call is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	workers := p.cfg.MaxConcurrentJobs
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		w := &worker{id: i, pool: p}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runSweep(ctx)
	}()

	p.log.Info("analysis worker pool started", "workers", workers)
}

// Stop signals every worker and the sweep loop to exit and waits for them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	p.log.Info("analysis worker pool stopped")
}

func (p *Pool) runSweep(ctx context.Context) {
	interval := p.cfg.StuckSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.store.SweepStuck(ctx, p.cfg.StuckThreshold, p.cfg.MaxRetries)
			if err != nil {
				p.log.Warn("stuck analysis sweep failed", "error", err)
				continue
			}
			if n > 0 {
				p.log.Warn("recovered stuck analyses", "count", n)
			}
		}
	}
}

// backoffFor builds the exponential-backoff policy used around a single
// job's LLM call, bounded by the job's own timeout.
func backoffFor(timeout time.Duration) backoff.BackOff {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout
	return b
}
