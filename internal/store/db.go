package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of the database behind a store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Open connects to Postgres for postgres:// URLs and to SQLite for
// sqlite:// URLs or plain file paths.
func Open(ctx context.Context, databaseURL string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	driver := "pgx"
	if dialect == SQLite {
		driver = "sqlite"
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, "", fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}
	if dialect == SQLite {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping db: %w", err)
	}
	return db, dialect, nil
}

func parseDatabaseURL(databaseURL string) (Dialect, string, error) {
	value := strings.TrimSpace(databaseURL)
	switch {
	case value == "":
		return "", "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(value, "postgres://"), strings.HasPrefix(value, "postgresql://"):
		return Postgres, value, nil
	case strings.HasPrefix(value, "sqlite://"):
		return SQLite, strings.TrimPrefix(value, "sqlite://"), nil
	case strings.HasPrefix(value, "sqlite:"):
		return SQLite, strings.TrimPrefix(value, "sqlite:"), nil
	case strings.Contains(value, "://"):
		return "", "", fmt.Errorf("unsupported database url %q", value)
	default:
		return SQLite, value, nil
	}
}
