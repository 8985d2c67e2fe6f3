// Package postgres opens the directory gateway on Postgres through the pgx
// database/sql driver. Row locks are native SELECT ... FOR UPDATE locks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"guideresto/internal/infra/rowstore"
	"guideresto/internal/schema/sqlbundle"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost:5432/guideresto?sslmode=disable"

	// SQLSTATE lock_not_available, raised by NOWAIT and lock_timeout.
	codeLockNotAvailable = "55P03"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open implementation for tests and returns a restore func.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Dialect implements rowstore.Dialect for Postgres.
type Dialect struct{}

var _ rowstore.Dialect = Dialect{}

func (Dialect) Name() string            { return defaultDriver }
func (Dialect) BindType() int           { return sqlx.DOLLAR }
func (Dialect) SupportsReturning() bool { return true }

// LockRow uses NOWAIT for a zero wait and a transaction-local lock_timeout
// otherwise. The timeout is rounded up to whole milliseconds: a zero
// lock_timeout would mean waiting forever.
func (Dialect) LockRow(ctx context.Context, tx *sqlx.Tx, _ string, table string, id int64, wait time.Duration) (rowstore.LockOutcome, error) {
	query := "SELECT id FROM " + table + " WHERE id = $1 FOR UPDATE NOWAIT"
	if wait > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeoutMillis(wait))); err != nil {
			return rowstore.LockNotAttempted, fmt.Errorf("set lock timeout: %w", err)
		}
		query = "SELECT id FROM " + table + " WHERE id = $1 FOR UPDATE"
	}
	return rowstore.ScanLock(ctx, tx, query, id, IsLockUnavailable)
}

func lockTimeoutMillis(wait time.Duration) int64 {
	ms := int64(wait / time.Millisecond)
	if wait%time.Millisecond != 0 {
		ms++
	}
	return ms
}

// Release is a no-op: Postgres releases row locks at commit or rollback.
func (Dialect) Release(string) {}

// IsLockUnavailable reports whether err is a Postgres lock_not_available error.
func IsLockUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvailable
}

// Open connects to Postgres (DefaultDSN when dsn is empty) and applies the schema.
func Open(ctx context.Context, dsn string) (*rowstore.SQLGateway, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := rowstore.ApplySchema(ctx, db, sqlbundle.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rowstore.NewSQLGateway(db, Dialect{}), nil
}
