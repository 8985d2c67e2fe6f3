package core

import (
	"context"
	"fmt"
	"time"

	"guideresto/internal/infra/rowstore"
	"guideresto/internal/logging"
	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// LockStatus is the outcome of locking a restaurant for editing.
type LockStatus int

const (
	LockStatusLocked LockStatus = iota
	LockStatusNotFound
	LockStatusConflict
)

func (s LockStatus) String() string {
	switch s {
	case LockStatusLocked:
		return "locked"
	case LockStatusNotFound:
		return "not_found"
	case LockStatusConflict:
		return "conflict"
	default:
		return fmt.Sprintf("lock_status(%d)", int(s))
	}
}

// LockResult carries the locked aggregate when Status is LockStatusLocked.
type LockResult struct {
	Status     LockStatus
	Restaurant *domain.Restaurant
}

// SessionState tracks an EditSession through its lifecycle.
type SessionState int

const (
	SessionLocked SessionState = iota
	SessionCommitted
	SessionRolledBack
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionLocked:
		return "locked"
	case SessionCommitted:
		return "committed"
	case SessionRolledBack:
		return "rolled_back"
	case SessionFailed:
		return "failed"
	default:
		return fmt.Sprintf("session_state(%d)", int(s))
	}
}

// DeleteReport counts the rows removed by a restaurant cascade.
type DeleteReport struct {
	RestaurantID        int64
	Grades              int64
	CompleteEvaluations int64
	BasicEvaluations    int64
}

// Manager opens edit sessions: one scope per session, holding an exclusive
// lock on the restaurant row until the session commits or rolls back.
type Manager struct {
	gateway  rowstore.Gateway
	logger   Logger
	lockWait time.Duration
	observer LockObserver
}

// NewManager returns a manager that waits at most lockWait for a lock.
func NewManager(gateway rowstore.Gateway, logger Logger, lockWait time.Duration) *Manager {
	return &Manager{gateway: gateway, logger: logging.OrNoop(logger), lockWait: lockWait}
}

// LockWait reports the configured lock wait.
func (m *Manager) LockWait() time.Duration { return m.lockWait }

// Lock takes the restaurant lock inside scope and loads the aggregate.
// A missing row and a lock held elsewhere are outcomes, not errors.
func (m *Manager) Lock(ctx context.Context, scope *mapper.Scope, id int64) (LockResult, error) {
	outcome, err := scope.Tx().LockRow(ctx, rowstore.TableRestaurants, id, m.lockWait)
	if err != nil {
		m.logger.Error("lock restaurant failed", "restaurant_id", id, "error", err)
		return LockResult{}, domain.ErrPersistence{Op: "lock restaurant", Err: err}
	}
	switch outcome {
	case rowstore.LockAcquired:
	case rowstore.LockNotFound:
		return LockResult{Status: LockStatusNotFound}, nil
	case rowstore.LockTimeout:
		return LockResult{Status: LockStatusConflict}, nil
	default:
		return LockResult{}, domain.ErrPersistence{Op: "lock restaurant", Err: fmt.Errorf("unexpected lock outcome %s", outcome)}
	}
	r, err := scope.Aggregates().Load(ctx, id)
	if domain.IsNotFound(err) {
		return LockResult{Status: LockStatusNotFound}, nil
	}
	if err != nil {
		return LockResult{}, err
	}
	return LockResult{Status: LockStatusLocked, Restaurant: r}, nil
}

// Begin detaches restaurant id from caller, when given, and opens a locked
// session on a fresh scope. A missing restaurant yields ErrNotFound and a
// lock held by another session ErrConcurrencyConflict; in both cases the
// session scope is already rolled back.
func (m *Manager) Begin(ctx context.Context, id int64, caller *mapper.Scope) (*EditSession, error) {
	if caller != nil {
		caller.Detach(domain.EntityRestaurant, id)
	}
	scope, err := mapper.Begin(ctx, m.gateway, m.logger)
	if err != nil {
		return nil, err
	}
	locked := false
	defer func() {
		if !locked {
			_ = scope.Rollback()
		}
	}()
	result, err := m.Lock(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if m.observer != nil {
		m.observer.ObserveLock(ctx, result.Status)
	}
	switch result.Status {
	case LockStatusNotFound:
		return nil, domain.ErrNotFound{Entity: domain.EntityRestaurant, ID: id}
	case LockStatusConflict:
		m.logger.Info("restaurant locked by another editor", "restaurant_id", id)
		return nil, domain.ErrConcurrencyConflict{Entity: domain.EntityRestaurant, ID: id}
	}
	locked = true
	m.logger.Debug("edit session opened", "restaurant_id", id)
	return &EditSession{scope: scope, restaurant: result.Restaurant, logger: m.logger}, nil
}

// DeleteRestaurant removes a restaurant and everything it owns in one locked
// session: grades, complete evaluations, basic evaluations, then the row.
// Any failure rolls the whole cascade back.
func (m *Manager) DeleteRestaurant(ctx context.Context, id int64, caller *mapper.Scope) (DeleteReport, error) {
	session, err := m.Begin(ctx, id, caller)
	if err != nil {
		return DeleteReport{}, err
	}
	defer func() { _ = session.Rollback() }()

	report, err := session.cascade(ctx)
	if err != nil {
		session.fail()
		m.logger.Error("restaurant cascade failed", "restaurant_id", id, "error", err)
		return DeleteReport{}, err
	}
	if err := session.finish(); err != nil {
		return DeleteReport{}, err
	}
	m.logger.Info("restaurant deleted", "restaurant_id", id,
		"grades", report.Grades, "complete_evaluations", report.CompleteEvaluations, "basic_evaluations", report.BasicEvaluations)
	return report, nil
}

// EditSession is an open, locked restaurant aggregate. It is owned by a
// single goroutine.
type EditSession struct {
	scope      *mapper.Scope
	restaurant *domain.Restaurant
	state      SessionState
	logger     Logger
}

// Restaurant returns the locked aggregate.
func (e *EditSession) Restaurant() *domain.Restaurant { return e.restaurant }

// Scope exposes the session scope for evaluation and grade writes.
func (e *EditSession) Scope() *mapper.Scope { return e.scope }

func (e *EditSession) State() SessionState { return e.state }

// Commit writes the restaurant row, creating its address city if needed,
// commits and releases the lock. Calling it on a finished session is a
// no-op. On failure the session is rolled back and left Failed.
func (e *EditSession) Commit(ctx context.Context) error {
	if e.state != SessionLocked {
		return nil
	}
	if err := e.prepareWrite(ctx); err != nil {
		e.fail()
		return err
	}
	if err := e.scope.Restaurants().Update(ctx, e.restaurant); err != nil {
		e.fail()
		return err
	}
	return e.finish()
}

// Rollback discards the session's writes and releases the lock. Calling it
// on a finished session is a no-op.
func (e *EditSession) Rollback() error {
	if e.state != SessionLocked {
		return nil
	}
	e.state = SessionRolledBack
	return e.scope.Rollback()
}

func (e *EditSession) finish() error {
	if err := e.scope.Commit(); err != nil {
		e.state = SessionFailed
		return err
	}
	e.state = SessionCommitted
	return nil
}

// prepareWrite runs before the session's own reads so that they, and the
// writes that follow, see everything committed while the lock was held.
func (e *EditSession) prepareWrite(ctx context.Context) error {
	if err := e.scope.Tx().PrepareWrite(ctx); err != nil {
		e.logger.Error("prepare edit session write failed", "restaurant_id", e.restaurant.ID, "error", err)
		return domain.ErrPersistence{Op: "prepare write", Err: err}
	}
	return nil
}

func (e *EditSession) fail() {
	_ = e.scope.Rollback()
	e.state = SessionFailed
}

func (e *EditSession) cascade(ctx context.Context) (DeleteReport, error) {
	id := e.restaurant.ID
	report := DeleteReport{RestaurantID: id}
	if err := e.prepareWrite(ctx); err != nil {
		return DeleteReport{}, err
	}
	var err error
	if report.Grades, err = e.scope.Grades().DeleteByRestaurant(ctx, id); err != nil {
		return DeleteReport{}, err
	}
	if report.CompleteEvaluations, err = e.scope.CompleteEvaluations().DeleteByRestaurant(ctx, id); err != nil {
		return DeleteReport{}, err
	}
	if report.BasicEvaluations, err = e.scope.BasicEvaluations().DeleteByRestaurant(ctx, id); err != nil {
		return DeleteReport{}, err
	}
	if err := e.scope.Restaurants().DeleteByID(ctx, id); err != nil {
		return DeleteReport{}, err
	}
	e.restaurant.Evaluations = []domain.Evaluation{}
	return report, nil
}
