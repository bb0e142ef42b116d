package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type ChunkRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewChunkRepository(db *sql.DB, dialect Dialect) *ChunkRepository {
	return &ChunkRepository{db: db, dialect: dialect}
}

// CreateChunk records an uploaded chunk. Re-uploading a sequence replaces the row and
// resets it to the given state.
func (r *ChunkRepository) CreateChunk(ctx context.Context, chunk *domain.Chunk) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO chunks (meeting_id, sequence, storage_key, state, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (meeting_id, sequence) DO UPDATE
SET storage_key = excluded.storage_key, state = excluded.state, created_at = excluded.created_at
`), chunk.MeetingID, chunk.Sequence, chunk.StorageKey, string(chunk.State), chunk.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create chunk: %w", err)
	}
	return nil
}

func (r *ChunkRepository) GetChunk(ctx context.Context, meetingID string, sequence int) (*domain.Chunk, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT meeting_id, sequence, storage_key, state, created_at
FROM chunks
WHERE meeting_id = $1 AND sequence = $2
`), meetingID, sequence)

	var (
		chunk domain.Chunk
		state string
	)
	if err := row.Scan(&chunk.MeetingID, &chunk.Sequence, &chunk.StorageKey, &state, &chunk.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrChunkNotFound, "get chunk", fmt.Errorf("meeting=%s sequence=%d", meetingID, sequence))
		}
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	chunk.State = domain.ChunkState(state)
	chunk.CreatedAt = chunk.CreatedAt.UTC()
	return &chunk, nil
}

func (r *ChunkRepository) UpdateChunkState(ctx context.Context, meetingID string, sequence int, state domain.ChunkState) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE chunks
SET state = $3
WHERE meeting_id = $1 AND sequence = $2
`), meetingID, sequence, string(state))
	if err != nil {
		return fmt.Errorf("update chunk state: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrChunkNotFound, "update chunk state", fmt.Errorf("meeting=%s sequence=%d", meetingID, sequence))
	}
	return nil
}
