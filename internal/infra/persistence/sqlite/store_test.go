package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"guideresto/internal/infra/rowstore"
)

func openTemp(t *testing.T) *rowstore.SQLGateway {
	t.Helper()
	gw, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "guideresto.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func seedRestaurant(t *testing.T, gw *rowstore.SQLGateway) int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := gw.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	cityID, err := tx.Insert(ctx, "INSERT INTO cities (zip_code, name) VALUES (?, ?)", "2000", "Neuchâtel")
	if err != nil {
		t.Fatalf("insert city: %v", err)
	}
	typeID, err := tx.Insert(ctx, "INSERT INTO restaurant_types (label, description) VALUES (?, ?)", "Pizzeria", "")
	if err != nil {
		t.Fatalf("insert type: %v", err)
	}
	id, err := tx.Insert(ctx, "INSERT INTO restaurants (name, description, website, street, city_id, type_id) VALUES (?, ?, ?, ?, ?, ?)",
		"Pizza Bella", "", "", "Rue A", cityID, typeID)
	if err != nil {
		t.Fatalf("insert restaurant: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return id
}

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	gw, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = gw.Close()
	gw, err = Open(context.Background(), path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer func() { _ = gw.Close() }()
	var n int
	if err := gw.DB().Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'grades'"); err != nil || n != 1 {
		t.Fatalf("grades table missing: n=%d err=%v", n, err)
	}
}

func TestInsertSelectExec(t *testing.T) {
	gw := openTemp(t)
	id := seedRestaurant(t, gw)
	ctx := context.Background()
	tx, err := gw.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	var names []string
	if err := tx.Select(ctx, &names, "SELECT name FROM restaurants WHERE id = ?", id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(names) != 1 || names[0] != "Pizza Bella" {
		t.Fatalf("unexpected names %v", names)
	}
	n, err := tx.Exec(ctx, "UPDATE restaurants SET name = ? WHERE id = ?", "Pizza Nuova", id)
	if err != nil || n != 1 {
		t.Fatalf("update: n=%d err=%v", n, err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	gw := openTemp(t)
	ctx := context.Background()
	tx, err := gw.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Insert(ctx, "INSERT INTO basic_evaluations (visit_date, liked, ip_address, restaurant_id) VALUES (?, ?, ?, ?)",
		time.Now(), true, "127.0.0.1", 999); err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestLockRowOutcomes(t *testing.T) {
	gw := openTemp(t)
	id := seedRestaurant(t, gw)
	ctx := context.Background()

	a, _ := gw.Begin(ctx)
	b, _ := gw.Begin(ctx)
	defer func() { _ = a.Rollback(); _ = b.Rollback() }()

	if out, err := a.LockRow(ctx, rowstore.TableRestaurants, id, 0); err != nil || out != rowstore.LockAcquired {
		t.Fatalf("a lock: %v %v", out, err)
	}
	if out, err := b.LockRow(ctx, rowstore.TableRestaurants, id, 0); err != nil || out != rowstore.LockTimeout {
		t.Fatalf("b lock: %v %v", out, err)
	}
	if out, err := b.LockRow(ctx, rowstore.TableRestaurants, id+100, 0); err != nil || out != rowstore.LockNotFound {
		t.Fatalf("missing row: %v %v", out, err)
	}
	if err := a.Commit(); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if out, err := b.LockRow(ctx, rowstore.TableRestaurants, id, 0); err != nil || out != rowstore.LockAcquired {
		t.Fatalf("b lock after release: %v %v", out, err)
	}
	if _, err := b.LockRow(ctx, "sqlite_master", 1, 0); err == nil {
		t.Fatalf("expected unknown table error")
	}
}

func TestLockReleasedOnRollbackAndNotFound(t *testing.T) {
	gw := openTemp(t)
	id := seedRestaurant(t, gw)
	ctx := context.Background()
	dialect := gw.Dialect().(*Dialect)

	a, _ := gw.Begin(ctx)
	if out, _ := a.LockRow(ctx, rowstore.TableRestaurants, 12345, 0); out != rowstore.LockNotFound {
		t.Fatalf("expected not found, got %v", out)
	}
	if _, held := dialect.Locks().Holder(rowstore.LockKey{Table: rowstore.TableRestaurants, ID: 12345}); held {
		t.Fatalf("not-found lock must be released immediately")
	}
	if out, _ := a.LockRow(ctx, rowstore.TableRestaurants, id, 0); out != rowstore.LockAcquired {
		t.Fatalf("expected acquired, got %v", out)
	}
	if err := a.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := a.Rollback(); err != nil {
		t.Fatalf("second rollback must be a no-op: %v", err)
	}
	if _, held := dialect.Locks().Holder(rowstore.LockKey{Table: rowstore.TableRestaurants, ID: id}); held {
		t.Fatalf("rollback must release row locks")
	}
}

func TestDSN(t *testing.T) {
	got := DSN("/tmp/x.db")
	want := "file:/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if got != want {
		t.Fatalf("DSN mismatch: %s", got)
	}
}

func TestLockHolderWritesAfterConcurrentCommit(t *testing.T) {
	gw := openTemp(t)
	id := seedRestaurant(t, gw)
	ctx := context.Background()

	a, err := gw.Begin(ctx)
	if err != nil {
		t.Fatalf("begin a: %v", err)
	}
	defer func() { _ = a.Rollback() }()
	if out, err := a.LockRow(ctx, rowstore.TableRestaurants, id, 0); err != nil || out != rowstore.LockAcquired {
		t.Fatalf("a lock: %v %v", out, err)
	}
	var name string
	if err := a.Get(ctx, &name, "SELECT name FROM restaurants WHERE id = ?", id); err != nil {
		t.Fatalf("a read: %v", err)
	}

	b, _ := gw.Begin(ctx)
	if _, err := b.Insert(ctx, "INSERT INTO cities (zip_code, name) VALUES (?, ?)", "1003", "Lausanne"); err != nil {
		t.Fatalf("b insert: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("b commit: %v", err)
	}

	if n, err := a.Exec(ctx, "UPDATE restaurants SET name = ? WHERE id = ?", "Pizza Nuova", id); err != nil || n != 1 {
		t.Fatalf("a write after concurrent commit: n=%d err=%v", n, err)
	}
	c, _ := gw.Begin(ctx)
	if out, _ := c.LockRow(ctx, rowstore.TableRestaurants, id, 0); out != rowstore.LockTimeout {
		t.Fatalf("lock must survive the restart, got %v", out)
	}
	_ = c.Rollback()
	if err := a.Commit(); err != nil {
		t.Fatalf("a commit: %v", err)
	}
	if err := gw.DB().Get(&name, "SELECT name FROM restaurants WHERE id = ?", id); err != nil || name != "Pizza Nuova" {
		t.Fatalf("expected committed name, got %q (%v)", name, err)
	}
	var cities int
	if err := gw.DB().Get(&cities, "SELECT COUNT(*) FROM cities"); err != nil || cities != 2 {
		t.Fatalf("concurrent insert lost: %d (%v)", cities, err)
	}
}

func TestPrepareWriteWithoutLockIsNoop(t *testing.T) {
	gw := openTemp(t)
	ctx := context.Background()
	tx, _ := gw.Begin(ctx)
	defer func() { _ = tx.Rollback() }()
	if err := tx.PrepareWrite(ctx); err != nil {
		t.Fatalf("prepare write: %v", err)
	}
	if _, err := tx.Insert(ctx, "INSERT INTO cities (zip_code, name) VALUES (?, ?)", "2000", "Neuchâtel"); err != nil {
		t.Fatalf("insert: %v", err)
	}
}
