// internal/database/db.go
//
// Opening the relational store.
// Drivers:
//   - sqlite3:  DATABASE_URL is a file path (e.g. ./data/puzzle.db). The parent
//     directory is created, and the DSN enables WAL, a busy timeout, foreign keys
//     and BEGIN IMMEDIATE so that session transactions serialize on the writer lock.
//   - postgres: DATABASE_URL is a lib/pq connection URL.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"

// Open opens databaseURL with driver and verifies the connection.
func Open(ctx context.Context, driver, databaseURL string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(databaseURL)
	case DriverPostgres:
		db, err = sql.Open("postgres", databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openSQLite(path string) (*sql.DB, error) {
	// Ensure directory exists for ./data/puzzle.db, etc.
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return sql.Open("sqlite3", path+sep+sqliteParams)
}
