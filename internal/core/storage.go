package core

import (
	"context"
	"fmt"

	"guideresto/internal/infra/persistence/mysql"
	"guideresto/internal/infra/persistence/postgres"
	"guideresto/internal/infra/persistence/sqlite"
	"guideresto/internal/infra/rowstore"
)

// StorageDriver identifies a relational backend.
type StorageDriver string

const (
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMySQL    StorageDriver = "mysql"    // MySQL 8 server
)

// OpenGateway connects to the backend named by cfg.Storage and applies the
// schema. SQLite is used when the driver is empty.
func OpenGateway(ctx context.Context, cfg Config) (rowstore.Gateway, error) {
	var (
		gw  *rowstore.SQLGateway
		err error
	)
	switch cfg.Storage {
	case "", StorageSQLite:
		gw, err = sqlite.Open(ctx, cfg.SQLitePath)
	case StoragePostgres:
		gw, err = postgres.Open(ctx, cfg.PostgresDSN)
	case StorageMySQL:
		gw, err = mysql.Open(ctx, cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Storage)
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}
