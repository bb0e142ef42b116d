package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaLockID int64 = 2026101701

const postgresSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	state TEXT NOT NULL,
	client TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	participants TEXT NOT NULL DEFAULT '[]',
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_meetings_user_started ON meetings(user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS chunks (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	sequence INTEGER NOT NULL,
	storage_key TEXT NOT NULL,
	state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (meeting_id, sequence)
);

CREATE TABLE IF NOT EXISTS transcript_segments (
	id BIGSERIAL PRIMARY KEY,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	chunk_sequence INTEGER NOT NULL,
	speaker TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting_order ON transcript_segments(meeting_id, chunk_sequence, id);

CREATE TABLE IF NOT EXISTS minutes (
	meeting_id TEXT PRIMARY KEY REFERENCES meetings(id) ON DELETE CASCADE,
	document TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	owner TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	due_date TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (meeting_id, position)
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	state TEXT NOT NULL,
	client TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	participants TEXT NOT NULL DEFAULT '[]',
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_meetings_user_started ON meetings(user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS chunks (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	sequence INTEGER NOT NULL,
	storage_key TEXT NOT NULL,
	state TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (meeting_id, sequence)
);

CREATE TABLE IF NOT EXISTS transcript_segments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	chunk_sequence INTEGER NOT NULL,
	speaker TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting_order ON transcript_segments(meeting_id, chunk_sequence, id);

CREATE TABLE IF NOT EXISTS minutes (
	meeting_id TEXT PRIMARY KEY REFERENCES meetings(id) ON DELETE CASCADE,
	document TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	owner TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	due_date TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (meeting_id, position)
);
`

// EnsureSchema creates the tables if needed. On Postgres the DDL runs under an
// advisory lock so api and worker can start concurrently.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	return withTx(ctx, db, "schema", func(tx *sql.Tx) error {
		ddl := sqliteSchema
		if dialect == DialectPostgres {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
				return fmt.Errorf("acquire schema lock: %w", err)
			}
			ddl = postgresSchema
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
		return nil
	})
}
