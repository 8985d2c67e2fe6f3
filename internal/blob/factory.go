package blob

import (
	"context"
	"fmt"

	"guideresto/internal/infra/blob/fs"
	"guideresto/internal/infra/blob/memory"
	"guideresto/internal/infra/blob/s3"
)

// S3Config configures the S3 backend.
type S3Config = s3.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the backend named by cfg.Driver, the filesystem when empty.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an empty in-memory store.
func NewMemory() Store { return memory.New() }

// NewS3 returns a store writing to cfg.Bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3.New(ctx, cfg) }
