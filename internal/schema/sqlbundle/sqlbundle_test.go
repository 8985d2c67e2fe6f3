package sqlbundle

import (
	"strings"
	"testing"
)

var tables = []string{
	"cities",
	"restaurant_types",
	"evaluation_criteria",
	"restaurants",
	"basic_evaluations",
	"complete_evaluations",
	"grades",
}

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres(), "mysql": MySQL()} {
		stmts := SplitStatements(ddl)
		if len(stmts) < len(tables) {
			t.Fatalf("%s: expected at least %d statements, got %d", name, len(tables), len(stmts))
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
				t.Fatalf("%s: statement unexpectedly starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
				t.Fatalf("%s: statement missing semicolon terminator: %q", name, stmt)
			}
		}
	}
}

func TestBundlesDeclareEveryTable(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres(), "mysql": MySQL()} {
		for _, table := range tables {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Fatalf("%s: missing table %s", name, table)
			}
		}
		if strings.Contains(strings.ToUpper(ddl), "ON DELETE CASCADE") {
			t.Fatalf("%s: cascades must be performed in application code", name)
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id INT);\n\nSELECT 1")
	if len(stmts) != 2 || stmts[1] != "SELECT 1" {
		t.Fatalf("unexpected statements: %q", stmts)
	}
}
