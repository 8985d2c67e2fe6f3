// Package testutil holds import guards that keep the layering of the
// directory intact: domain types stay free of stores, mappers talk to the
// row store gateway only.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// InternalImportForbidden matches any package below an internal/ directory.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// StoreDriverImportForbidden matches database/sql, sqlx and the SQL drivers.
func StoreDriverImportForbidden(path string) bool {
	if path == "database/sql" || strings.HasPrefix(path, "database/sql/") {
		return true
	}
	for _, driver := range []string{"github.com/jmoiron/sqlx", "github.com/jackc/pgx", "github.com/go-sql-driver/mysql", "modernc.org/sqlite"} {
		if path == driver || strings.HasPrefix(path, driver+"/") {
			return true
		}
	}
	return false
}

// DialectImportForbidden matches the per-database gateway packages.
func DialectImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/persistence/")
}

// AssertNoDirectImports parses the non-test Go files of dir and fails when
// an import matches forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(string) bool, reason string) {
	t.Helper()
	viols, err := directImports(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, "direct imports", reason, viols)
}

// AssertNoTransitiveDependency runs `go list -deps pattern` and fails when
// any dependency matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(string) bool, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, out)
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	report(t, "transitive dependencies", reason, viols)
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func directImports(dir string, forbidden func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			if path := strings.Trim(imp.Path.Value, `"`); forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func report(t fatalf, kind, reason string, viols []string) {
	if len(viols) == 0 {
		return
	}
	sort.Strings(viols)
	t.Fatalf("forbidden %s (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
}
