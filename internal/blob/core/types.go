// Package core defines the storage contract for exported directory
// documents. Backends live under internal/infra/blob.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	// DriverFilesystem writes under a local directory (default).
	DriverFilesystem Driver = "fs"
	// DriverS3 writes to an S3 or MinIO bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps blobs in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional attributes of a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Checksum     string            `json:"checksum,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a create-only key/value blob store. Keys are slash separated.
type Store interface {
	// Put writes a new blob and fails with ErrExists when key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens a blob; the caller closes the reader. Missing keys yield ErrNotFound.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete removes a blob and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns the blobs under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrExists is returned by Put for an existing key.
	ErrExists = errors.New("blob already exists")
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("blob not found")
)

// CloneMetadata copies m so stored metadata is never shared with callers.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
