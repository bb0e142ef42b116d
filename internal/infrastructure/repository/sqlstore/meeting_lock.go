package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"
)

// MeetingLocker takes a session-level Postgres advisory lock per meeting so that
// several workers never regenerate the same meeting at once. SQLite databases are
// local to one process and need no lock.
type MeetingLocker struct {
	db      *sql.DB
	dialect Dialect
}

func NewMeetingLocker(db *sql.DB, dialect Dialect) *MeetingLocker {
	return &MeetingLocker{db: db, dialect: dialect}
}

// LockMeeting blocks until the lock is held or ctx is done. The lock lives on a
// dedicated connection that goes back to the pool on release.
func (l *MeetingLocker) LockMeeting(ctx context.Context, meetingID string) (func(), error) {
	if l.dialect != DialectPostgres {
		return func() {}, nil
	}
	key := meetingLockKey(meetingID)
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock meeting %s: acquire connection: %w", meetingID, err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("lock meeting %s: %w", meetingID, err)
	}
	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, key); err != nil {
			slog.Warn("meeting_unlock_failed", "meeting_id", meetingID, "error", err)
		}
		_ = conn.Close()
	}, nil
}

// meetingLockKey keeps meeting locks in their own key space next to schemaLockID.
func meetingLockKey(meetingID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("meeting:" + meetingID))
	return int64(h.Sum64())
}
