// Package blob is the entry point for export storage. Callers depend on
// Store and open a backend through Open; infra packages stay behind it.
package blob

import "guideresto/internal/blob/core"

type (
	// Driver identifies a blob backend.
	Driver = core.Driver
	// PutOptions configures a write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)
