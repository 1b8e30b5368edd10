package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteDB is the embedded backend used for local runs and tests
type SQLiteDB struct {
	DB *sql.DB
}

// NewSQLiteDB opens a SQLite database. The URL may be a bare path, ":memory:",
// a "file:" DSN or a "sqlite://" URL.
func NewSQLiteDB(ctx context.Context, url string) (*SQLiteDB, error) {
	dsn := SQLiteDSN(url)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serialises writers; one connection keeps in-memory databases alive
	// and makes BEGIN/COMMIT behave predictably.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	return &SQLiteDB{DB: db}, nil
}

// IsSQLiteURL reports whether url points at a SQLite database rather than Postgres
func IsSQLiteURL(url string) bool {
	switch {
	case url == ":memory:":
		return true
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		return true
	case strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), strings.HasSuffix(url, ".sqlite3"):
		return true
	}
	return false
}

// SQLiteDSN strips the sqlite:// scheme so the driver receives a plain path
func SQLiteDSN(url string) string {
	if rest, ok := strings.CutPrefix(url, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(url, "sqlite:"); ok {
		return rest
	}
	return url
}

// Close closes the database
func (db *SQLiteDB) Close() error {
	return db.DB.Close()
}

// Health checks the database connection
func (db *SQLiteDB) Health(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
