package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"guideresto/internal/schema/sqlbundle"
)

// Execer is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplySchema executes every statement of a DDL bundle in order. The bundles
// only contain IF NOT EXISTS statements, so applying twice is harmless.
func ApplySchema(ctx context.Context, db Execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
