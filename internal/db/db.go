package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend behind a DATABASE_URL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const (
	connMaxLifetime = 5 * time.Minute
	sqliteBusyMS    = 5000
)

func init() {
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// ParseURL splits a DATABASE_URL into dialect and driver DSN.
//
// Postgres URLs (postgres://, postgresql://) are passed to lib/pq unchanged.
// SQLite URLs follow the SQLAlchemy convention: sqlite:///relative.db and
// sqlite:////absolute/path.db.
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite:///"):
		path := strings.TrimPrefix(databaseURL, "sqlite:///")
		if path == "" {
			return "", "", errors.New("sqlite url has no file path")
		}
		if !strings.Contains(path, "?") {
			path += fmt.Sprintf("?_pragma=busy_timeout(%d)", sqliteBusyMS)
		}
		return SQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}

// Open connects to the database named by databaseURL and verifies it with a ping.
func Open(ctx context.Context, databaseURL string, opts Options) (*sqlx.DB, Dialect, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, dialect, nil
}
