package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"guideresto/internal/blob"
)

// Environment variables read by LoadConfig.
const (
	EnvStorageDriver = "GUIDERESTO_STORAGE_DRIVER"
	EnvSQLitePath    = "GUIDERESTO_SQLITE_PATH"
	EnvPostgresDSN   = "GUIDERESTO_POSTGRES_DSN"
	EnvMySQLDSN      = "GUIDERESTO_MYSQL_DSN"
	EnvLockWait      = "GUIDERESTO_LOCK_WAIT"
	EnvBlobDriver    = "GUIDERESTO_BLOB_DRIVER"
	EnvBlobFSRoot    = "GUIDERESTO_BLOB_FS_ROOT"
	EnvS3Bucket      = "GUIDERESTO_BLOB_S3_BUCKET"
	EnvS3Region      = "GUIDERESTO_BLOB_S3_REGION"
	EnvS3Endpoint    = "GUIDERESTO_BLOB_S3_ENDPOINT"
	EnvS3AccessKey   = "GUIDERESTO_BLOB_S3_ACCESS_KEY"
	EnvS3SecretKey   = "GUIDERESTO_BLOB_S3_SECRET_KEY"
	EnvS3PathStyle   = "GUIDERESTO_BLOB_S3_USE_PATH_STYLE"
)

// Config is the process configuration. Empty DSNs and paths fall back to
// the driver defaults.
type Config struct {
	Storage     StorageDriver
	SQLitePath  string
	PostgresDSN string
	MySQLDSN    string
	LockWait    time.Duration
	Blob        blob.Config
}

// LoadConfig reads the GUIDERESTO_* environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Storage:     StorageDriver(os.Getenv(EnvStorageDriver)),
		SQLitePath:  os.Getenv(EnvSQLitePath),
		PostgresDSN: os.Getenv(EnvPostgresDSN),
		MySQLDSN:    os.Getenv(EnvMySQLDSN),
		Blob: blob.Config{
			Driver: blob.Driver(os.Getenv(EnvBlobDriver)),
			FSRoot: os.Getenv(EnvBlobFSRoot),
			S3: blob.S3Config{
				Bucket:          os.Getenv(EnvS3Bucket),
				Region:          os.Getenv(EnvS3Region),
				Endpoint:        os.Getenv(EnvS3Endpoint),
				AccessKeyID:     os.Getenv(EnvS3AccessKey),
				SecretAccessKey: os.Getenv(EnvS3SecretKey),
			},
		},
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageSQLite
	}
	if raw := os.Getenv(EnvLockWait); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", EnvLockWait, err)
		}
		if wait < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", EnvLockWait)
		}
		cfg.LockWait = wait
	}
	if raw := os.Getenv(EnvS3PathStyle); raw != "" {
		pathStyle, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", EnvS3PathStyle, err)
		}
		cfg.Blob.S3.PathStyle = pathStyle
	}
	return cfg, nil
}
