package backend

import (
	"context"
	"slices"

	"fintrack/internal/store"
)

// CleanupFunc releases the resources behind a store.
type CleanupFunc func() error

// Result is an opened record store and its cleanup function.
type Result struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// Factory opens record stores based on configuration.
type Factory interface {
	Open(ctx context.Context, config Config) (*Result, error)
}

// Config holds what every backend needs to open.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURI      string
	MongoDatabase string
}

// BackendType names a record store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
