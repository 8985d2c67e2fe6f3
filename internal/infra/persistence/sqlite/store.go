// Package sqlite opens the directory gateway on an embedded SQLite file.
// SQLite has no row-level locks, so exclusive row locks are kept in an
// in-process lock table shared by every transaction of the gateway.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"guideresto/internal/infra/rowstore"
	"guideresto/internal/schema/sqlbundle"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const driverName = "sqlite"

// Dialect implements rowstore.Dialect for SQLite.
type Dialect struct {
	locks *rowstore.RowLocks
}

var (
	_ rowstore.Dialect       = (*Dialect)(nil)
	_ rowstore.WriteUpgrader = (*Dialect)(nil)
)

// NewDialect returns a dialect with an empty lock table.
func NewDialect() *Dialect {
	return &Dialect{locks: rowstore.NewRowLocks()}
}

func (d *Dialect) Name() string            { return driverName }
func (d *Dialect) BindType() int           { return sqlx.QUESTION }
func (d *Dialect) SupportsReturning() bool { return true }

// LockRow takes the in-process lock first so the existence check observes
// whatever the previous holder committed.
func (d *Dialect) LockRow(ctx context.Context, tx *sqlx.Tx, owner, table string, id int64, wait time.Duration) (rowstore.LockOutcome, error) {
	key := rowstore.LockKey{Table: table, ID: id}
	ok, err := d.locks.Acquire(ctx, key, owner, wait)
	if err != nil {
		return rowstore.LockNotAttempted, err
	}
	if !ok {
		return rowstore.LockTimeout, nil
	}
	outcome, err := rowstore.ScanLock(ctx, tx, "SELECT id FROM "+table+" WHERE id = ?", id, nil)
	if outcome != rowstore.LockAcquired {
		d.locks.Release(key, owner)
	}
	return outcome, err
}

func (d *Dialect) Release(owner string) { d.locks.ReleaseAll(owner) }

// UpgradeWrite takes the database write lock with a no-op update of the
// locked row. In WAL mode a deferred transaction that read before another
// connection committed cannot write anymore (SQLITE_BUSY_SNAPSHOT).
func (d *Dialect) UpgradeWrite(ctx context.Context, tx *sqlx.Tx, table string, id int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE "+table+" SET id = id WHERE id = ?", id)
	return err
}

// Locks exposes the lock table for diagnostics.
func (d *Dialect) Locks() *rowstore.RowLocks { return d.locks }

// DSN builds the connection string used by Open. Every pooled connection
// enforces foreign keys and waits on busy writers instead of failing.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open opens (creating if needed) the SQLite file at path and applies the schema.
func Open(ctx context.Context, path string) (*rowstore.SQLGateway, error) {
	if path == "" {
		path = "guideresto.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := rowstore.ApplySchema(ctx, db, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rowstore.NewSQLGateway(db, NewDialect()), nil
}
