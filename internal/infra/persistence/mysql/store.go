// Package mysql opens the directory gateway on MySQL 8 (InnoDB) through
// go-sql-driver/mysql. Row locks are native SELECT ... FOR UPDATE locks.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"guideresto/internal/infra/rowstore"
	"guideresto/internal/schema/sqlbundle"
)

const (
	driverName = "mysql"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "root@tcp(localhost:3306)/guideresto?parseTime=true"

	errLockNowait      = 3572 // ER_LOCK_NOWAIT
	errLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
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

// Dialect implements rowstore.Dialect for MySQL.
type Dialect struct{}

var _ rowstore.Dialect = Dialect{}

func (Dialect) Name() string            { return driverName }
func (Dialect) BindType() int           { return sqlx.QUESTION }
func (Dialect) SupportsReturning() bool { return false }

// LockRow uses NOWAIT for a zero wait. A positive wait is rounded up to whole
// seconds, the granularity of innodb_lock_wait_timeout, and applies to the
// locking SELECT only: the session value goes back to the server default
// before the pooled connection serves anything else.
func (Dialect) LockRow(ctx context.Context, tx *sqlx.Tx, _ string, table string, id int64, wait time.Duration) (rowstore.LockOutcome, error) {
	if wait <= 0 {
		return rowstore.ScanLock(ctx, tx, "SELECT id FROM "+table+" WHERE id = ? FOR UPDATE NOWAIT", id, IsLockUnavailable)
	}
	seconds := int64(math.Ceil(wait.Seconds()))
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)); err != nil {
		return rowstore.LockNotAttempted, fmt.Errorf("set lock wait timeout: %w", err)
	}
	outcome, err := rowstore.ScanLock(ctx, tx, "SELECT id FROM "+table+" WHERE id = ? FOR UPDATE", id, IsLockUnavailable)
	if _, rerr := tx.ExecContext(ctx, "SET SESSION innodb_lock_wait_timeout = DEFAULT"); rerr != nil && err == nil {
		return rowstore.LockNotAttempted, fmt.Errorf("reset lock wait timeout: %w", rerr)
	}
	return outcome, err
}

// Release is a no-op: InnoDB releases row locks at commit or rollback.
func (Dialect) Release(string) {}

// IsLockUnavailable reports whether err is a NOWAIT failure or a lock wait timeout.
func IsLockUnavailable(err error) bool {
	var myErr *driver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errLockNowait || myErr.Number == errLockWaitTimeout
}

// Open connects to MySQL (DefaultDSN when dsn is empty) and applies the schema.
func Open(ctx context.Context, dsn string) (*rowstore.SQLGateway, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	openMu.Lock()
	db, err := sqlOpen(driverName, cfg.FormatDSN())
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := rowstore.ApplySchema(ctx, db, sqlbundle.MySQL()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rowstore.NewSQLGateway(db, Dialect{}), nil
}
