package storage

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type itemKind int

const (
	itemInsertRequest itemKind = iota
	itemPatchRequest
	itemInsertChunk
)

type writeItem struct {
	kind       itemKind
	request    *Request
	patch      *RequestPatch
	chunk      *Chunk
	enqueuedAt time.Time
}

func (i writeItem) requestID() uuid.UUID {
	switch i.kind {
	case itemInsertRequest:
		return i.request.RequestID
	case itemPatchRequest:
		return i.patch.RequestID
	case itemInsertChunk:
		return i.chunk.RequestID
	}
	return uuid.Nil
}

// PipelineConfig mirrors §4.E's batching/back-pressure knobs.
type PipelineConfig struct {
	BatchSize       int
	FlushInterval   time.Duration
	QueueDepth      int
	EnqueueTimeout  time.Duration
	ShutdownTimeout time.Duration
	WriterCount     int
}

// WritePipeline is the single process-wide entry point for durable writes.
// It shards work across WriterCount goroutines by request id so that all
// items belonging to one request (its InsertRequest, its chunks, its
// eventual PatchRequest) are always handled by the same shard in enqueue
// order, preserving the ascending-chunk_index guarantee, while unrelated
// requests flush independently in parallel.
type WritePipeline struct {
	store  *Store
	cfg    PipelineConfig
	shards []*writerShard
	log    *slog.Logger

	dropCount atomic.Int64
}

// NewWritePipeline builds a pipeline with cfg.WriterCount shards, each
// buffering up to cfg.QueueDepth/WriterCount items.
func NewWritePipeline(store *Store, cfg PipelineConfig) *WritePipeline {
	if cfg.WriterCount <= 0 {
		cfg.WriterCount = 1
	}
	perShard := cfg.QueueDepth / cfg.WriterCount
	if perShard <= 0 {
		perShard = 1
	}

	p := &WritePipeline{
		store: store,
		cfg:   cfg,
		log:   slog.With("component", "write_pipeline"),
	}
	for i := 0; i < cfg.WriterCount; i++ {
		p.shards = append(p.shards, &writerShard{
			store:         store,
			queue:         make(chan writeItem, perShard),
			batchSize:     cfg.BatchSize,
			flushInterval: cfg.FlushInterval,
			log:           p.log,
		})
	}
	return p
}

// Start launches every shard's writer loop.
func (p *WritePipeline) Start(ctx context.Context) {
	for _, sh := range p.shards {
		sh.start(ctx)
	}
}

// Stop signals every shard to flush its remaining buffer and stop,
// waiting up to cfg.ShutdownTimeout.
func (p *WritePipeline) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
	defer cancel()

	for _, sh := range p.shards {
		sh.stop(ctx)
	}
	return nil
}

// Depth returns the total number of items currently buffered across all
// shards, for observability.
func (p *WritePipeline) Depth() int {
	n := 0
	for _, sh := range p.shards {
		n += len(sh.queue)
	}
	return n
}

// DropCount returns how many items were discarded because an enqueue
// timed out, or its context ended, while waiting for buffer space.
func (p *WritePipeline) DropCount() int64 {
	return p.dropCount.Load()
}

func (p *WritePipeline) shardFor(id uuid.UUID) *writerShard {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return p.shards[h.Sum32()%uint32(len(p.shards))]
}

func (p *WritePipeline) enqueue(ctx context.Context, item writeItem) error {
	item.enqueuedAt = time.Now()
	shard := p.shardFor(item.requestID())

	timeout := p.cfg.EnqueueTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case shard.queue <- item:
		return nil
	case <-ctx.Done():
		p.dropCount.Add(1)
		return ctx.Err()
	case <-timer.C:
		p.dropCount.Add(1)
		p.log.Warn("write pipeline enqueue timed out, dropping item", "kind", item.kind)
		return nil
	}
}

// EnqueueInsertRequest queues the pre-response row for persistence.
func (p *WritePipeline) EnqueueInsertRequest(ctx context.Context, r *Request) error {
	return p.enqueue(ctx, writeItem{kind: itemInsertRequest, request: r})
}

// EnqueuePatchRequest queues the post-response patch for persistence.
func (p *WritePipeline) EnqueuePatchRequest(ctx context.Context, patch *RequestPatch) error {
	return p.enqueue(ctx, writeItem{kind: itemPatchRequest, patch: patch})
}

// EnqueueChunk queues one streaming chunk for persistence. Callers MUST
// enqueue chunks for a given request id in ascending chunk_index order.
func (p *WritePipeline) EnqueueChunk(ctx context.Context, c *Chunk) error {
	return p.enqueue(ctx, writeItem{kind: itemInsertChunk, chunk: c})
}
