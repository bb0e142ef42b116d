package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type MinutesRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewMinutesRepository(db *sql.DB, dialect Dialect) *MinutesRepository {
	return &MinutesRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *MinutesRepository) UpsertMinutes(ctx context.Context, meetingID string, doc domain.MinutesDocument) error {
	doc.Normalize()
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode minutes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO minutes (meeting_id, document, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (meeting_id) DO UPDATE
SET document = excluded.document, updated_at = excluded.updated_at
`), meetingID, string(raw), r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert minutes: %w", err)
	}
	return nil
}

func (r *MinutesRepository) GetMinutes(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT document
FROM minutes
WHERE meeting_id = $1
`), meetingID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMinutesNotFound, "get minutes", fmt.Errorf("meeting=%s", meetingID))
		}
		return nil, fmt.Errorf("get minutes: %w", err)
	}

	var doc domain.MinutesDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode minutes: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}
