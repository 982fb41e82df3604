package storage

import "context"

// flushBatch commits every item in items within a single transaction, in
// the order given. Since each shard drains its own queue in enqueue order,
// this preserves ascending chunk_index for chunks of the same request.
func (s *Store) flushBatch(ctx context.Context, items []writeItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range items {
		var err error
		switch item.kind {
		case itemInsertRequest:
			_, err = tx.Exec(ctx, insertRequestSQL,
				item.request.RequestID, item.request.Domain, item.request.AccountID, item.request.Timestamp,
				item.request.UpstreamModel, item.request.RequestType, item.request.RequestBody,
				item.request.Streaming, item.request.ConversationID, item.request.BranchID,
				item.request.MessageCount, item.request.ParentRequestID, item.request.CurrentMessageHash,
				item.request.ParentMessageHash, item.request.SystemHash, item.request.ParentTaskRequestID,
				item.request.IsSubtask, item.request.TaskToolInvocation,
			)
		case itemPatchRequest:
			p := item.patch
			_, err = tx.Exec(ctx, patchRequestSQL,
				p.RequestID, p.ResponseBody,
				p.InputTokens, p.OutputTokens, p.TotalTokens,
				p.CacheCreationTokens, p.CacheReadTokens,
				p.FirstTokenMS, p.DurationMS,
				p.ErrorText, p.ErrorKind, p.HTTPStatusCode,
				p.UpstreamRequestID, p.ToolCallCount,
			)
		case itemInsertChunk:
			c := item.chunk
			_, err = tx.Exec(ctx, `
				INSERT INTO streaming_chunks (request_id, chunk_index, timestamp, data, token_count)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (request_id, chunk_index) DO NOTHING
			`, c.RequestID, c.ChunkIndex, c.Timestamp, c.Data, c.TokenCount)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
