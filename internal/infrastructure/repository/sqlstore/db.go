package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case DialectPostgres, "pgx", "":
		return DialectPostgres, nil
	case DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", raw)
	}
}

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

// rebind rewrites $N placeholders to SQLite's ?N form. Both forms bind by ordinal, so
// a query may reuse or reorder placeholders. Quoted literals are left alone.
func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	var out strings.Builder
	out.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			out.WriteByte(c)
		case c == '$' && !inQuote && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9':
			out.WriteByte('?')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// OpenDB opens and pings the database. SQLite is limited to a single connection so
// writers never contend for the file lock.
func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if dialect == DialectSQLite {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragmas: %w", err)
		}
	}
	return db, nil
}

func withTx(ctx context.Context, db *sql.DB, operation string, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", operation, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", operation, err)
	}
	return nil
}
