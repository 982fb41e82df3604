package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePipeline_FlushesBatchedInsertsAndPatch(t *testing.T) {
	store := newTestStore(t)

	pipe := NewWritePipeline(store, PipelineConfig{
		BatchSize:       2,
		FlushInterval:   50 * time.Millisecond,
		QueueDepth:      100,
		EnqueueTimeout:  time.Second,
		ShutdownTimeout: 5 * time.Second,
		WriterCount:     2,
	})

	ctx := context.Background()
	pipe.Start(ctx)
	defer pipe.Stop()

	r := newTestRequest()
	require.NoError(t, pipe.EnqueueInsertRequest(ctx, r))

	total := int64(5)
	require.NoError(t, pipe.EnqueuePatchRequest(ctx, &RequestPatch{
		RequestID:   r.RequestID,
		TotalTokens: &total,
	}))

	require.Eventually(t, func() bool {
		got, err := store.GetRequest(ctx, r.RequestID)
		return err == nil && got.TotalTokens != nil
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWritePipeline_ChunksFlushInAscendingOrder(t *testing.T) {
	store := newTestStore(t)

	pipe := NewWritePipeline(store, PipelineConfig{
		BatchSize:       100,
		FlushInterval:   30 * time.Millisecond,
		QueueDepth:      100,
		EnqueueTimeout:  time.Second,
		ShutdownTimeout: 5 * time.Second,
		WriterCount:     4,
	})

	ctx := context.Background()
	pipe.Start(ctx)

	r := newTestRequest()
	r.Streaming = true
	require.NoError(t, pipe.EnqueueInsertRequest(ctx, r))

	for i := 0; i < 5; i++ {
		require.NoError(t, pipe.EnqueueChunk(ctx, &Chunk{
			RequestID:  r.RequestID,
			ChunkIndex: i,
			Timestamp:  time.Now(),
			Data:       []byte("chunk"),
			TokenCount: 1,
		}))
	}

	pipe.Stop()

	chunks, err := store.ListChunks(ctx, r.RequestID)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestWritePipeline_Depth(t *testing.T) {
	store := newTestStore(t)

	pipe := NewWritePipeline(store, PipelineConfig{
		BatchSize:       1000,
		FlushInterval:   time.Hour,
		QueueDepth:      100,
		EnqueueTimeout:  time.Second,
		ShutdownTimeout: time.Second,
		WriterCount:     1,
	})

	ctx := context.Background()
	pipe.Start(ctx)
	defer pipe.Stop()

	r := newTestRequest()
	require.NoError(t, pipe.EnqueueInsertRequest(ctx, r))

	assert.GreaterOrEqual(t, pipe.Depth(), 0)
}
