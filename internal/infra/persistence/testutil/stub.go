// Package testutil provides a recording stub database for dialect tests that
// cannot reach a real Postgres or MySQL server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StubConn records every statement and serves canned rows per table.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Queries    []string
	Tables     map[string][]map[string]any
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	// QueryErr is returned by every query when set.
	QueryErr error
	RowsErr  error
	nextID   int64
	Commits  int
	Aborts   int
}

// NewStubDB registers a uniquely named driver backed by a single stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubdb%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Opener returns a function shaped like sql.Open that always yields db.
func Opener(db *sql.DB) func(driverName, dsn string) (*sql.DB, error) {
	return func(string, string) (*sql.DB, error) { return db, nil }
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. INSERT statements receive
// increasing ids through LastInsertId.
func (c *StubConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		c.nextID++
		return stubResult{lastID: c.nextID, affected: 1}, nil
	}
	return stubResult{affected: 1}, nil
}

// QueryContext implements driver.QueryerContext. Rows are served from
// Tables by the first table named after FROM, ignoring any predicate.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, query)
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	tableRows := c.Tables[table]
	values := make([][]driver.Value, 0, len(tableRows))
	for _, row := range tableRows {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

// ExecsWithPrefix returns the recorded statements starting with prefix.
func (c *StubConn) ExecsWithPrefix(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, q := range c.Execs {
		if strings.HasPrefix(strings.TrimSpace(q), prefix) {
			out = append(out, q)
		}
	}
	return out
}

type stubResult struct {
	lastID   int64
	affected int64
}

func (r stubResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.affected, nil }

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.Aborts++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseSelect(query string) (string, []string, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	selectPrefix := "select "
	fromToken := " from "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := lower[len(selectPrefix):fromIdx]
	rest := strings.Fields(lower[fromIdx+len(fromToken):])
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	parts := strings.Split(cols, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return rest[0], out, nil
}
