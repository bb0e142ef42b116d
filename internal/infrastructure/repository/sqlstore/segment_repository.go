package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type SegmentRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSegmentRepository(db *sql.DB, dialect Dialect) *SegmentRepository {
	return &SegmentRepository{db: db, dialect: dialect, now: time.Now}
}

// ReplaceChunkSegments swaps the transcript of one chunk in a single transaction and
// writes the assigned ids back into the slice. A re-uploaded chunk never leaves two
// copies of its segments behind.
func (r *SegmentRepository) ReplaceChunkSegments(ctx context.Context, meetingID string, sequence int, segments []domain.TranscriptSegment) error {
	deleteQuery := r.dialect.rebind(`
DELETE FROM transcript_segments
WHERE meeting_id = $1 AND chunk_sequence = $2
`)
	insertQuery := r.dialect.rebind(`
INSERT INTO transcript_segments (meeting_id, chunk_sequence, speaker, text, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`)
	return withTx(ctx, r.db, "replace chunk segments", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteQuery, meetingID, sequence); err != nil {
			return fmt.Errorf("delete chunk segments: %w", err)
		}
		for i := range segments {
			seg := &segments[i]
			seg.MeetingID = meetingID
			seg.ChunkSequence = sequence
			if seg.CreatedAt.IsZero() {
				seg.CreatedAt = r.now().UTC()
			}
			if err := tx.QueryRowContext(ctx, insertQuery,
				seg.MeetingID, seg.ChunkSequence, seg.Speaker, seg.Text, seg.CreatedAt.UTC(),
			).Scan(&seg.ID); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *SegmentRepository) ListSegments(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT id, meeting_id, chunk_sequence, speaker, text, created_at
FROM transcript_segments
WHERE meeting_id = $1
ORDER BY chunk_sequence, id
`), meetingID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TranscriptSegment, 0)
	for rows.Next() {
		var seg domain.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.MeetingID, &seg.ChunkSequence, &seg.Speaker, &seg.Text, &seg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.CreatedAt = seg.CreatedAt.UTC()
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

// UpdateSegments rewrites speaker and text of existing segments by id.
func (r *SegmentRepository) UpdateSegments(ctx context.Context, segments []domain.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	query := r.dialect.rebind(`
UPDATE transcript_segments
SET speaker = $2, text = $3
WHERE id = $1
`)
	return withTx(ctx, r.db, "update segments", func(tx *sql.Tx) error {
		for _, seg := range segments {
			if _, err := tx.ExecContext(ctx, query, seg.ID, seg.Speaker, seg.Text); err != nil {
				return fmt.Errorf("update segment id=%d: %w", seg.ID, err)
			}
		}
		return nil
	})
}
