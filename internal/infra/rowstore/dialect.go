package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dialect captures what differs between backing stores.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// BindType is the sqlx placeholder style.
	BindType() int
	// SupportsReturning reports whether INSERT ... RETURNING id is available.
	SupportsReturning() bool
	// LockRow acquires an exclusive lock on table row id inside tx on behalf of owner.
	LockRow(ctx context.Context, tx *sqlx.Tx, owner, table string, id int64, wait time.Duration) (LockOutcome, error)
	// Release drops any in-process lock held by owner. Called when a transaction ends.
	Release(owner string)
}

// WriteUpgrader is implemented by dialects whose read snapshot can go stale
// while a row lock is held. UpgradeWrite makes tx the writer so the lock
// holder's later writes cannot be refused.
type WriteUpgrader interface {
	UpgradeWrite(ctx context.Context, tx *sqlx.Tx, table string, id int64) error
}

// ScanLock runs a locking SELECT that yields the row id. A missing row is
// LockNotFound and an error matched by unavailable is LockTimeout.
func ScanLock(ctx context.Context, tx *sqlx.Tx, query string, id int64, unavailable func(error) bool) (LockOutcome, error) {
	var got int64
	err := tx.QueryRowxContext(ctx, query, id).Scan(&got)
	switch {
	case err == nil:
		return LockAcquired, nil
	case errors.Is(err, sql.ErrNoRows):
		return LockNotFound, nil
	case unavailable != nil && unavailable(err):
		return LockTimeout, nil
	default:
		return LockNotAttempted, err
	}
}

// Table names accepted by LockRow.
const (
	TableCities              = "cities"
	TableRestaurantTypes     = "restaurant_types"
	TableCriteria            = "evaluation_criteria"
	TableRestaurants         = "restaurants"
	TableBasicEvaluations    = "basic_evaluations"
	TableCompleteEvaluations = "complete_evaluations"
	TableGrades              = "grades"
)

var knownTables = map[string]struct{}{
	TableCities:              {},
	TableRestaurantTypes:     {},
	TableCriteria:            {},
	TableRestaurants:         {},
	TableBasicEvaluations:    {},
	TableCompleteEvaluations: {},
	TableGrades:              {},
}

// KnownTable reports whether table belongs to the directory schema. Table
// names are spliced into lock statements, so only these are accepted.
func KnownTable(table string) bool {
	_, ok := knownTables[table]
	return ok
}
