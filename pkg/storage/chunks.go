package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertChunks persists a batch of streaming chunks in a single statement.
// Callers MUST pass chunks for a given request id in ascending chunk_index
// order; the unique (request_id, chunk_index) constraint rejects duplicate
// indexes but does not detect gaps.
func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	defer s.logSlow("insert_chunks", time.Now())

	batch := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		batch = append(batch, []any{c.RequestID, c.ChunkIndex, c.Timestamp, c.Data, c.TokenCount})
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"streaming_chunks"},
		[]string{"request_id", "chunk_index", "timestamp", "data", "token_count"},
		pgx.CopyFromRows(batch),
	)
	return err
}

// ListChunks returns every chunk of a request in ascending chunk_index
// order, used by the Read API's request-detail endpoint.
func (s *Store) ListChunks(ctx context.Context, requestID uuid.UUID) ([]*Chunk, error) {
	defer s.logSlow("list_chunks", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT request_id, chunk_index, timestamp, data, token_count
		FROM streaming_chunks
		WHERE request_id = $1
		ORDER BY chunk_index ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.RequestID, &c.ChunkIndex, &c.Timestamp, &c.Data, &c.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
