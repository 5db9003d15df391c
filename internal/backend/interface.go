// Package backend opens the configured stores and assembles the services
// shared by the server, the worker and the admin CLI.
package backend

import (
	"context"

	"pisoheroes/internal/remote"
)

type CleanupFunc func() error

// BackendResult is an opened remote store.
type BackendResult struct {
	Client  remote.Client
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	DatabaseURL  string
	SQLiteDBPath string

	// Migrate applies the embedded schema before returning.
	Migrate bool
}

type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
