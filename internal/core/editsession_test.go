package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

func TestEditSessionConflictThenCommit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	a, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin A: %v", err)
	}
	if a.State() != SessionLocked || a.Restaurant().ID != d.restaurant.ID {
		t.Fatalf("unexpected session A: %v %+v", a.State(), a.Restaurant())
	}

	if _, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID); !domain.IsConflict(err) {
		t.Fatalf("expected concurrency conflict for B, got %v", err)
	}

	a.Restaurant().Name = "Pizza Bellissima"
	if err := a.Commit(ctx); err != nil {
		t.Fatalf("commit A: %v", err)
	}
	if a.State() != SessionCommitted {
		t.Fatalf("expected committed state, got %v", a.State())
	}

	r, err := svc.Restaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if r.Name != "Pizza Bellissima" {
		t.Fatalf("expected committed name, got %q", r.Name)
	}

	b, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("lock must be free after commit: %v", err)
	}
	if err := b.Rollback(); err != nil {
		t.Fatalf("rollback B: %v", err)
	}
}

func TestOnlyOneConcurrentEditorWins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	const editors = 8
	var (
		mu        sync.Mutex
		sessions  []*EditSession
		conflicts int
	)
	var g errgroup.Group
	for i := 0; i < editors; i++ {
		g.Go(func() error {
			session, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sessions = append(sessions, session)
			case domain.IsConflict(err):
				conflicts++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected editor error: %v", err)
	}
	if len(sessions) != 1 || conflicts != editors-1 {
		t.Fatalf("expected exactly one lock holder, got %d holders and %d conflicts", len(sessions), conflicts)
	}
	if err := sessions[0].Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}

func TestBeginMissingRestaurant(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	svc := newTestService(t, WithMetricsRecorder(metrics))
	if _, err := svc.BeginEditRestaurant(context.Background(), 42); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(metrics.locks) != 1 || metrics.locks[0] != LockStatusNotFound {
		t.Fatalf("expected lock outcome to be observed, got %v", metrics.locks)
	}
}

func TestLockWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithLockWait(30*time.Millisecond))
	d := seedPizzeria(t, svc)
	if got := svc.Edits().LockWait(); got != 30*time.Millisecond {
		t.Fatalf("unexpected lock wait %v", got)
	}

	holder, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin holder: %v", err)
	}
	defer func() { _ = holder.Rollback() }()

	start := time.Now()
	if _, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID); !domain.IsConflict(err) {
		t.Fatalf("expected conflict after waiting, got %v", err)
	}
	if waited := time.Since(start); waited < 30*time.Millisecond {
		t.Fatalf("expected to wait for the lock, returned after %v", waited)
	}
}

func TestCommitAndRollbackAreIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	session, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	session.Restaurant().Description = "Since 1987"
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if err := session.Rollback(); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}
	if session.State() != SessionCommitted {
		t.Fatalf("state changed after commit: %v", session.State())
	}

	session, err = svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin again: %v", err)
	}
	session.Restaurant().Description = "discarded"
	for i := 0; i < 2; i++ {
		if err := session.Rollback(); err != nil {
			t.Fatalf("rollback %d: %v", i, err)
		}
	}
	if err := session.Commit(ctx); err != nil || session.State() != SessionRolledBack {
		t.Fatalf("commit after rollback must be a no-op, got %v %v", err, session.State())
	}
	if session.Scope().Identity().Len() != 0 {
		t.Fatalf("rollback must clear the session identity map")
	}
	r, _ := svc.Restaurant(ctx, d.restaurant.ID)
	if r.Description != "Since 1987" {
		t.Fatalf("rolled back write leaked: %q", r.Description)
	}
}

func TestFailedCommitLeavesSessionFailed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	session, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	session.Restaurant().Name = " "
	if err := session.Commit(ctx); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if session.State() != SessionFailed {
		t.Fatalf("expected failed state, got %v", session.State())
	}
	again, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("lock must be released after a failed commit: %v", err)
	}
	_ = again.Rollback()
}

func TestBeginDetachesRestaurantFromCaller(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	err := svc.InScope(ctx, func(sc *mapper.Scope) error {
		stale, err := sc.Restaurants().FindByID(ctx, d.restaurant.ID)
		if err != nil {
			return err
		}
		session, err := svc.Edits().Begin(ctx, d.restaurant.ID, sc)
		if err != nil {
			return err
		}
		defer func() { _ = session.Rollback() }()
		if _, ok := sc.Identity().Get(domain.EntityRestaurant, d.restaurant.ID); ok {
			t.Fatalf("restaurant must be detached from the caller scope")
		}
		if session.Restaurant() == stale {
			t.Fatalf("session must work on its own instance")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("in scope: %v", err)
	}
}

func TestDeleteRestaurantCascades(t *testing.T) {
	ctx := context.Background()
	gw := openGateway(t)
	svc := NewService(gw)
	d := seedPizzeria(t, svc)
	rate(t, svc, d)

	r, err := svc.Restaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	report, err := svc.DeleteRestaurant(ctx, r)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := DeleteReport{RestaurantID: r.ID, Grades: 2, CompleteEvaluations: 1, BasicEvaluations: 1}
	if report != want {
		t.Fatalf("unexpected report %+v, want %+v", report, want)
	}
	if len(r.Evaluations) != 0 {
		t.Fatalf("caller aggregate keeps deleted evaluations")
	}
	for _, table := range []string{"grades", "complete_evaluations", "basic_evaluations", "restaurants"} {
		if n := count(t, gw, table); n != 0 {
			t.Fatalf("expected %s to be empty, got %d rows", table, n)
		}
	}
	if _, err := svc.Restaurant(ctx, r.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := svc.DeleteRestaurant(ctx, r); !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteRestaurantIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	gw := openGateway(t)
	svc := NewService(gw)
	d := seedPizzeria(t, svc)
	rate(t, svc, d)

	if _, err := gw.DB().ExecContext(ctx,
		"CREATE TRIGGER keep_basic_evaluations BEFORE DELETE ON basic_evaluations BEGIN SELECT RAISE(ABORT, 'forced failure'); END;"); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	_, err := svc.DeleteRestaurant(ctx, d.restaurant)
	if !domain.IsPersistence(err) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	var perr domain.ErrPersistence
	if !errors.As(err, &perr) || perr.Err == nil {
		t.Fatalf("expected wrapped store error, got %#v", err)
	}
	for table, want := range map[string]int{"grades": 2, "complete_evaluations": 1, "basic_evaluations": 1, "restaurants": 1} {
		if n := count(t, gw, table); n != want {
			t.Fatalf("expected %d rows in %s after rollback, got %d", want, table, n)
		}
	}
	again, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("lock must be released after a failed cascade: %v", err)
	}
	_ = again.Rollback()
}

func TestRestaurantMapperRefusesDeleteWithEvaluations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)
	rate(t, svc, d)

	err := svc.InScope(ctx, func(sc *mapper.Scope) error {
		return sc.Restaurants().DeleteByID(ctx, d.restaurant.ID)
	})
	if !domain.IsIntegrity(err) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
}

func TestEditSessionCommitsAfterUnrelatedWrite(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d := seedPizzeria(t, svc)

	session, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.CreateCity(ctx, &domain.City{ZipCode: "1003", Name: "Lausanne"}); err != nil {
		t.Fatalf("unrelated write while locked: %v", err)
	}
	session.Restaurant().Name = "Pizza Lausanne"
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("commit after unrelated write: %v (state=%v)", err, session.State())
	}
	r, err := svc.Restaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if r.Name != "Pizza Lausanne" {
		t.Fatalf("expected committed name, got %q", r.Name)
	}
	cities, err := svc.Cities(ctx)
	if err != nil || len(cities) != 2 {
		t.Fatalf("expected both cities, got %d (%v)", len(cities), err)
	}
}

func TestEditSessionScopeWritesAfterUnrelatedWrite(t *testing.T) {
	ctx := context.Background()
	gw := openGateway(t)
	svc := NewService(gw)
	d := seedPizzeria(t, svc)

	session, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = session.Rollback() }()
	if _, err := svc.CreateRestaurantType(ctx, &domain.RestaurantType{Label: "Brasserie"}); err != nil {
		t.Fatalf("unrelated write while locked: %v", err)
	}
	e := &domain.BasicEvaluation{VisitDate: visitDay, Like: true, IPAddress: "198.51.100.4", Restaurant: session.Restaurant()}
	if _, err := session.Scope().BasicEvaluations().Create(ctx, e); err != nil {
		t.Fatalf("session write: %v", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if n := count(t, gw, "basic_evaluations"); n != 1 {
		t.Fatalf("expected the session's evaluation, got %d rows", n)
	}
	if n := count(t, gw, "restaurant_types"); n != 2 {
		t.Fatalf("expected the unrelated type to survive, got %d rows", n)
	}
	next, err := svc.BeginEditRestaurant(ctx, d.restaurant.ID)
	if err != nil {
		t.Fatalf("lock must be free after commit: %v", err)
	}
	_ = next.Rollback()
}
