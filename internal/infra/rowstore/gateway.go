// Package rowstore is the relational gateway consumed by the mappers: it
// runs parameterized reads and writes inside a transaction, returns
// generated ids, and takes exclusive row locks with a bounded wait.
package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Gateway opens transactions against one backing store.
type Gateway interface {
	Begin(ctx context.Context) (Tx, error)
	Dialect() Dialect
	Close() error
}

// Tx is owned by a single scope for its whole lifetime. Queries use `?`
// placeholders and are rebound for the dialect.
type Tx interface {
	// Select scans all result rows into dest, a pointer to a slice.
	Select(ctx context.Context, dest any, query string, args ...any) error
	// Get scans a single row into dest and returns sql.ErrNoRows when empty.
	Get(ctx context.Context, dest any, query string, args ...any) error
	// Exec runs a command and returns the affected row count.
	Exec(ctx context.Context, command string, args ...any) (int64, error)
	// Insert runs an INSERT and returns the generated id.
	Insert(ctx context.Context, command string, args ...any) (int64, error)
	// LockRow takes an exclusive lock on table row id, waiting at most wait.
	LockRow(ctx context.Context, table string, id int64, wait time.Duration) (LockOutcome, error)
	// PrepareWrite readies a transaction holding a row lock for its first
	// write. Exec and Insert call it implicitly.
	PrepareWrite(ctx context.Context) error
	Commit() error
	Rollback() error
}

// LockOutcome is the explicit result of a LockRow call.
type LockOutcome int

const (
	LockNotAttempted LockOutcome = iota
	LockAcquired
	LockNotFound
	LockTimeout
)

func (o LockOutcome) String() string {
	switch o {
	case LockAcquired:
		return "acquired"
	case LockNotFound:
		return "not_found"
	case LockTimeout:
		return "timeout"
	default:
		return "not_attempted"
	}
}

// SQLGateway implements Gateway over database/sql and sqlx.
type SQLGateway struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ Gateway = (*SQLGateway)(nil)

// NewSQLGateway wraps an opened pool. The pool is owned by the gateway.
func NewSQLGateway(db *sql.DB, dialect Dialect) *SQLGateway {
	return &SQLGateway{db: sqlx.NewDb(db, dialect.Name()), dialect: dialect}
}

// Begin starts a transaction with a fresh lock-owner token.
func (g *SQLGateway) Begin(ctx context.Context) (Tx, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{db: g.db, tx: tx, dialect: g.dialect, owner: uuid.NewString()}, nil
}

// Dialect returns the dialect the gateway was opened with.
func (g *SQLGateway) Dialect() Dialect { return g.dialect }

// DB exposes the pool for schema bootstrap and integration tests.
func (g *SQLGateway) DB() *sqlx.DB { return g.db }

// Close closes the underlying pool.
func (g *SQLGateway) Close() error { return g.db.Close() }

type sqlTx struct {
	db      *sqlx.DB
	tx      *sqlx.Tx
	dialect Dialect
	owner   string
	locked  *LockKey
	writing bool
	done    bool
}

func (t *sqlTx) rebind(query string) string {
	return sqlx.Rebind(t.dialect.BindType(), query)
}

func (t *sqlTx) Select(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.SelectContext(ctx, dest, t.rebind(query), args...)
}

func (t *sqlTx) Get(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.GetContext(ctx, dest, t.rebind(query), args...)
}

func (t *sqlTx) Exec(ctx context.Context, command string, args ...any) (int64, error) {
	if err := t.PrepareWrite(ctx); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, t.rebind(command), args...)
	if err != nil {
		return 0, err
	}
	t.writing = true
	return res.RowsAffected()
}

func (t *sqlTx) Insert(ctx context.Context, command string, args ...any) (int64, error) {
	if err := t.PrepareWrite(ctx); err != nil {
		return 0, err
	}
	if t.dialect.SupportsReturning() {
		var id int64
		if err := t.tx.QueryRowxContext(ctx, t.rebind(command+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		t.writing = true
		return id, nil
	}
	res, err := t.tx.ExecContext(ctx, t.rebind(command), args...)
	if err != nil {
		return 0, err
	}
	t.writing = true
	return res.LastInsertId()
}

// PrepareWrite is a no-op unless the dialect is a WriteUpgrader and the
// transaction holds a row lock without having written yet. In that case the
// transaction restarts on the latest snapshot and becomes the writer; the
// row locks belong to the owner token and are kept.
func (t *sqlTx) PrepareWrite(ctx context.Context) error {
	up, ok := t.dialect.(WriteUpgrader)
	if !ok || t.locked == nil || t.writing || t.done {
		return nil
	}
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("restart transaction: %w", err)
	}
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("restart transaction: %w", err)
	}
	t.tx = tx
	if err := up.UpgradeWrite(ctx, tx, t.locked.Table, t.locked.ID); err != nil {
		return fmt.Errorf("upgrade to writer: %w", err)
	}
	t.writing = true
	return nil
}

func (t *sqlTx) LockRow(ctx context.Context, table string, id int64, wait time.Duration) (LockOutcome, error) {
	if !KnownTable(table) {
		return LockNotAttempted, fmt.Errorf("lock row: unknown table %q", table)
	}
	if wait < 0 {
		wait = 0
	}
	outcome, err := t.dialect.LockRow(ctx, t.tx, t.owner, table, id, wait)
	if outcome == LockAcquired && t.locked == nil {
		t.locked = &LockKey{Table: table, ID: id}
	}
	return outcome, err
}

func (t *sqlTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.dialect.Release(t.owner)
	if err := t.tx.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.dialect.Release(t.owner)
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
