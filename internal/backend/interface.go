package backend

import (
	"context"

	"ledger/internal/registry"
)

// Store persists the vendor registry between runs.
type Store interface {
	// Load returns the stored registry, empty on first use.
	Load(ctx context.Context) (*registry.Registry, error)
	// Save merges run into the stored registry and returns the merged state.
	Save(ctx context.Context, run *registry.Registry) (*registry.Registry, error)
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and optional cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// File specific
	RegistryFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend:
		return true
	default:
		return false
	}
}
