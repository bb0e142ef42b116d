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

type MeetingRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewMeetingRepository(db *sql.DB, dialect Dialect) *MeetingRepository {
	return &MeetingRepository{db: db, dialect: dialect}
}

const meetingColumns = `id, user_id, state, client, project, responsible, participants, started_at, ended_at`

func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting *domain.Meeting) error {
	participants, err := encodeParticipants(meeting.Identification.Participants)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO meetings (`+meetingColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`),
		meeting.ID,
		meeting.UserID,
		string(meeting.State),
		meeting.Identification.Client,
		meeting.Identification.Project,
		meeting.Identification.Responsible,
		participants,
		meeting.StartedAt.UTC(),
		utcOrNil(meeting.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (*domain.Meeting, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+meetingColumns+`
FROM meetings
WHERE id = $1
`), id)

	meeting, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMeetingNotFound, "get meeting", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return &meeting, nil
}

func (r *MeetingRepository) ListMeetings(ctx context.Context, userID string) ([]domain.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT `+meetingColumns+`
FROM meetings
WHERE user_id = $1
ORDER BY started_at DESC, id
`), userID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return out, nil
}

func (r *MeetingRepository) EndMeeting(ctx context.Context, meeting *domain.Meeting) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE meetings
SET state = $2, ended_at = $3
WHERE id = $1
`), meeting.ID, string(meeting.State), utcOrNil(meeting.EndedAt))
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrMeetingNotFound, "end meeting", fmt.Errorf("id=%s", meeting.ID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(scanner rowScanner) (domain.Meeting, error) {
	var (
		meeting      domain.Meeting
		state        string
		participants string
		endedAt      sql.NullTime
	)
	if err := scanner.Scan(
		&meeting.ID,
		&meeting.UserID,
		&state,
		&meeting.Identification.Client,
		&meeting.Identification.Project,
		&meeting.Identification.Responsible,
		&participants,
		&meeting.StartedAt,
		&endedAt,
	); err != nil {
		return domain.Meeting{}, err
	}
	meeting.State = domain.MeetingState(state)
	meeting.StartedAt = meeting.StartedAt.UTC()
	if endedAt.Valid {
		ended := endedAt.Time.UTC()
		meeting.EndedAt = &ended
	}
	meeting.Identification.Participants = []string{}
	if participants != "" {
		if err := json.Unmarshal([]byte(participants), &meeting.Identification.Participants); err != nil {
			return domain.Meeting{}, fmt.Errorf("decode participants: %w", err)
		}
	}
	return meeting, nil
}

func encodeParticipants(participants []string) (string, error) {
	if participants == nil {
		participants = []string{}
	}
	raw, err := json.Marshal(participants)
	if err != nil {
		return "", fmt.Errorf("encode participants: %w", err)
	}
	return string(raw), nil
}

func utcOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
