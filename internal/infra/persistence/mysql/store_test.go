package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"guideresto/internal/infra/persistence/testutil"
	"guideresto/internal/infra/rowstore"
	"guideresto/internal/schema/sqlbundle"
)

func openStub(t *testing.T) (*rowstore.SQLGateway, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(testutil.Opener(db))
	t.Cleanup(restore)
	gw, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return gw, conn
}

func TestOpenForcesParseTime(t *testing.T) {
	var gotDSN string
	db, _ := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	})
	defer restore()
	if _, err := Open(context.Background(), "app:secret@tcp(db:3306)/guideresto"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !strings.Contains(gotDSN, "parseTime=true") {
		t.Fatalf("expected parseTime in DSN, got %q", gotDSN)
	}
}

func TestOpenAppliesDDLAndRejectsBadDSN(t *testing.T) {
	_, conn := openStub(t)
	want := len(sqlbundle.SplitStatements(sqlbundle.MySQL()))
	if got := len(conn.ExecsWithPrefix("CREATE TABLE")); got != want {
		t.Fatalf("expected %d DDL statements, got %d", want, got)
	}
	if _, err := Open(context.Background(), "not a dsn"); err == nil {
		t.Fatalf("expected dsn parse error")
	}
}

func TestInsertUsesLastInsertID(t *testing.T) {
	gw, _ := openStub(t)
	ctx := context.Background()
	tx, err := gw.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	id, err := tx.Insert(ctx, "INSERT INTO cities (zip_code, name) VALUES (?, ?)", "2000", "Neuchâtel")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected generated id, got %d", id)
	}
}

func TestLockRowStatements(t *testing.T) {
	gw, conn := openStub(t)
	conn.Tables["restaurants"] = []map[string]any{{"id": int64(3)}}
	ctx := context.Background()
	tx, _ := gw.Begin(ctx)
	defer func() { _ = tx.Rollback() }()

	if out, err := tx.LockRow(ctx, rowstore.TableRestaurants, 3, 0); err != nil || out != rowstore.LockAcquired {
		t.Fatalf("expected acquired, got %v %v", out, err)
	}
	if last := conn.Queries[len(conn.Queries)-1]; !strings.HasSuffix(last, "FOR UPDATE NOWAIT") {
		t.Fatalf("unexpected lock query %q", last)
	}
	if out, err := tx.LockRow(ctx, rowstore.TableRestaurants, 3, 1200*time.Millisecond); err != nil || out != rowstore.LockAcquired {
		t.Fatalf("expected acquired with wait, got %v %v", out, err)
	}
	sets := conn.ExecsWithPrefix("SET SESSION innodb_lock_wait_timeout")
	if len(sets) != 2 || !strings.HasSuffix(sets[0], "= 2") {
		t.Fatalf("expected wait rounded up to 2s, got %v", sets)
	}
	if !strings.HasSuffix(sets[1], "= DEFAULT") {
		t.Fatalf("session timeout must be reset after the lock, got %v", sets)
	}
}

func TestLockRowResetsTimeoutAfterConflict(t *testing.T) {
	gw, conn := openStub(t)
	ctx := context.Background()
	tx, _ := gw.Begin(ctx)
	defer func() { _ = tx.Rollback() }()

	conn.QueryErr = &driver.MySQLError{Number: errLockWaitTimeout, Message: "Lock wait timeout exceeded"}
	out, err := tx.LockRow(ctx, rowstore.TableRestaurants, 5, 3*time.Second)
	if err != nil || out != rowstore.LockTimeout {
		t.Fatalf("expected timeout outcome, got %v %v", out, err)
	}
	resets := conn.ExecsWithPrefix("SET SESSION innodb_lock_wait_timeout = DEFAULT")
	if len(resets) != 1 {
		t.Fatalf("expected one reset after a timed out lock, got %v", conn.Execs)
	}
	if last := conn.Execs[len(conn.Execs)-1]; last != resets[0] {
		t.Fatalf("reset must be the last statement, got %q", last)
	}
}

func TestLockRowClassifiesConflicts(t *testing.T) {
	gw, conn := openStub(t)
	ctx := context.Background()
	tx, _ := gw.Begin(ctx)
	defer func() { _ = tx.Rollback() }()

	for _, number := range []uint16{errLockNowait, errLockWaitTimeout} {
		conn.QueryErr = &driver.MySQLError{Number: number, Message: "locked"}
		out, err := tx.LockRow(ctx, rowstore.TableRestaurants, 1, 0)
		if err != nil || out != rowstore.LockTimeout {
			t.Fatalf("error %d: expected timeout outcome, got %v %v", number, out, err)
		}
	}
	if IsLockUnavailable(&driver.MySQLError{Number: 1451}) || IsLockUnavailable(errors.New("x")) {
		t.Fatalf("unexpected classification")
	}
}
