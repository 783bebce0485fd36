// Package backend builds the ledger store selected by DATA_BACKEND.
package backend

import (
	"context"

	"tally/internal/core"
	"tally/internal/store"
)

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (t BackendType) String() string { return string(t) }

func (t BackendType) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	}
	return false
}

// Store is everything a backend must provide.
type Store interface {
	Tables() store.Tables
	store.UserStore
	store.Pinger
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend and its cleanup function.
type BackendResult struct {
	Store   Store
	Tables  store.Tables
	Seed    []core.Category
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	PostgresURL  string
	// SeedDataDir holds seed_categories.txt for new users.
	SeedDataDir string
}
