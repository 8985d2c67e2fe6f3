// Package mapper converts directory rows to entities and back. Every call
// goes through an explicit Scope that owns one transaction and one identity
// map, so two lookups of the same row inside a scope yield the same instance.
//
// Store errors never leave this package raw: they are logged and returned as
// domain.ErrPersistence. Missing rows are domain.ErrNotFound.
package mapper

import (
	"context"
	"database/sql"
	"errors"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/internal/logging"
	"guideresto/pkg/domain"
)

type scopeState int

const (
	scopeOpen scopeState = iota
	scopeCommitted
	scopeRolledBack
)

// Scope is one unit of work. It is not safe for concurrent use.
type Scope struct {
	tx       rowstore.Tx
	identity *identitymap.Map
	logger   logging.Logger
	state    scopeState
}

// NewScope wraps an open transaction with an empty identity map.
func NewScope(tx rowstore.Tx, logger logging.Logger) *Scope {
	return &Scope{tx: tx, identity: identitymap.New(), logger: logging.OrNoop(logger)}
}

// Begin opens a transaction on gw and returns a fresh scope around it.
func Begin(ctx context.Context, gw rowstore.Gateway, logger logging.Logger) (*Scope, error) {
	tx, err := gw.Begin(ctx)
	if err != nil {
		logging.OrNoop(logger).Error("begin scope failed", "error", err)
		return nil, domain.ErrPersistence{Op: "begin transaction", Err: err}
	}
	return NewScope(tx, logger), nil
}

// Run executes fn in a new scope, committing when fn returns nil and rolling
// back otherwise. The scope always ends before Run returns.
func Run(ctx context.Context, gw rowstore.Gateway, logger logging.Logger, fn func(*Scope) error) error {
	s, err := Begin(ctx, gw, logger)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.Rollback()
		}
	}()
	if err := fn(s); err != nil {
		return err
	}
	if err := s.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Tx exposes the scope's transaction.
func (s *Scope) Tx() rowstore.Tx { return s.tx }

// Identity exposes the scope's identity map.
func (s *Scope) Identity() *identitymap.Map { return s.identity }

// Logger returns the scope logger.
func (s *Scope) Logger() logging.Logger { return s.logger }

// Done reports whether the scope has been committed or rolled back.
func (s *Scope) Done() bool { return s.state != scopeOpen }

// Detach evicts (typ, id) so the next lookup reads from the store.
func (s *Scope) Detach(typ domain.EntityType, id int64) bool {
	return s.identity.Remove(typ, id)
}

// Commit commits the transaction and clears the identity map. Calling it on
// a finished scope is a no-op.
func (s *Scope) Commit() error {
	if s.Done() {
		return nil
	}
	s.state = scopeCommitted
	defer s.identity.Clear()
	if err := s.tx.Commit(); err != nil {
		s.logger.Error("commit failed", "error", err)
		_ = s.tx.Rollback()
		return domain.ErrPersistence{Op: "commit", Err: err}
	}
	return nil
}

// Rollback discards the transaction and clears the identity map. Calling it
// on a finished scope is a no-op.
func (s *Scope) Rollback() error {
	if s.Done() {
		return nil
	}
	s.state = scopeRolledBack
	defer s.identity.Clear()
	if err := s.tx.Rollback(); err != nil {
		s.logger.Warn("rollback failed", "error", err)
		return domain.ErrPersistence{Op: "rollback", Err: err}
	}
	return nil
}

func (s *Scope) Cities() CityMapper                            { return CityMapper{s: s} }
func (s *Scope) Types() RestaurantTypeMapper                   { return RestaurantTypeMapper{s: s} }
func (s *Scope) Criteria() CriteriaMapper                      { return CriteriaMapper{s: s} }
func (s *Scope) Restaurants() RestaurantMapper                 { return RestaurantMapper{s: s} }
func (s *Scope) BasicEvaluations() BasicEvaluationMapper       { return BasicEvaluationMapper{s: s} }
func (s *Scope) CompleteEvaluations() CompleteEvaluationMapper { return CompleteEvaluationMapper{s: s} }
func (s *Scope) Grades() GradeMapper                           { return GradeMapper{s: s} }
func (s *Scope) Aggregates() AggregateLoader                   { return AggregateLoader{s: s} }

// fail logs a store error and converts it to a persistence failure.
func (s *Scope) fail(op string, err error) error {
	s.logger.Error("mapper store failure", "op", op, "error", err)
	return domain.ErrPersistence{Op: op, Err: err}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// selectRows runs query and scans every row into a slice of R.
func selectRows[R any](ctx context.Context, s *Scope, op, query string, args ...any) ([]R, error) {
	var rows []R
	if err := s.tx.Select(ctx, &rows, query, args...); err != nil {
		return nil, s.fail(op, err)
	}
	return rows, nil
}

// resolve returns the registered instance for (typ, id) or registers the one build produces.
func resolve[T any](s *Scope, typ domain.EntityType, id int64, build func() T) T {
	if existing, ok := identitymap.Lookup[T](s.identity, typ, id); ok {
		return existing
	}
	created := build()
	s.identity.Put(typ, id, created)
	return created
}

func (s *Scope) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	if err := s.tx.Get(ctx, &n, query, args...); err != nil {
		return 0, s.fail(op, err)
	}
	return n, nil
}

// deleteRow deletes one row by id and evicts it.
func (s *Scope) deleteRow(ctx context.Context, typ domain.EntityType, table string, id int64) error {
	n, err := s.tx.Exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return s.fail("delete "+string(typ), err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: typ, ID: id}
	}
	s.identity.Remove(typ, id)
	return nil
}

// ids collects the id column of query.
func (s *Scope) ids(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	return selectRows[int64](ctx, s, op, query, args...)
}

func requireID(typ domain.EntityType, id int64) error {
	if id == 0 {
		return domain.ErrValidation{Entity: typ, Field: "id"}
	}
	return nil
}
