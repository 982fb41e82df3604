package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// writerShard drains its own queue and flushes buffered items in a single
// transaction per batch, either when the buffer reaches batchSize or when
// the oldest buffered item has waited flushInterval, whichever first.
type writerShard struct {
	store         *Store
	queue         chan writeItem
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func (sh *writerShard) start(ctx context.Context) {
	sh.stopCh = make(chan struct{})
	sh.wg.Add(1)
	go sh.run(ctx)
}

func (sh *writerShard) stop(ctx context.Context) {
	close(sh.stopCh)
	done := make(chan struct{})
	go func() {
		sh.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		sh.log.Warn("write pipeline shutdown timed out with items still buffered", "remaining", len(sh.queue))
	}
}

func (sh *writerShard) run(ctx context.Context) {
	defer sh.wg.Done()

	ticker := time.NewTicker(sh.flushInterval)
	defer ticker.Stop()

	buf := make([]writeItem, 0, sh.batchSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := sh.store.flushBatch(context.Background(), buf); err != nil {
			sh.log.Warn("failed to flush write pipeline batch", "items", len(buf), "error", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case item := <-sh.queue:
			buf = append(buf, item)
			if len(buf) >= sh.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-sh.stopCh:
			sh.drain(&buf)
			flush()
			return
		case <-ctx.Done():
			sh.drain(&buf)
			flush()
			return
		}
	}
}

// drain pulls any remaining buffered items off the channel without
// blocking, so a graceful stop flushes everything already enqueued.
func (sh *writerShard) drain(buf *[]writeItem) {
	for {
		select {
		case item := <-sh.queue:
			*buf = append(*buf, item)
		default:
			return
		}
	}
}
