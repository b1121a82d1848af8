// internal/store/sqlstore/sqlstore.go
//
// database/sql implementation of store.Store for sqlite3 and postgres.
//
// Notes:
//   - Queries are written with "?" placeholders and rebound to $n for postgres.
//   - Both dialects support INSERT ... ON CONFLICT, which carries the schedule and
//     session uniqueness rules without a read-then-write race.
//   - Session transactions lock the row with SELECT ... FOR UPDATE on postgres; sqlite
//     connections are opened with _txlock=immediate, so BEGIN takes the writer lock.
//   - Timestamps are TEXT in RFC 3339 (UTC) so both dialects share one schema shape.
//   - Every driver error is returned as a STORAGE error.

package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/robalobadob/dailypuzzle/internal/database"
	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a SQL-backed store.Store.
type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// New wraps an open database. driver is database.DriverSQLite or database.DriverPostgres.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, postgres: driver == database.DriverPostgres, now: time.Now}
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q rebinds "?" placeholders for the active dialect.
func (s *Store) q(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate is the row-lock suffix of the dialect.
func (s *Store) forUpdate() string {
	if s.postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) timestamp() string { return formatTime(s.now()) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func storageErr(op string, err error) error { return game.NewStorageError(op, err) }
