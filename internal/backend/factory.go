package backend

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"tally/internal/log"
	"tally/internal/storage"
	"tally/internal/store"
	"tally/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store and checks it is reachable.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  Store
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		st, err = storage.OpenSQLite(config.SQLiteDBPath)
	case PostgresBackend:
		st, err = storage.OpenPostgres(config.PostgresURL)
	case MemoryBackend:
		st = memory.New()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", config.Type, err)
	}
	if err := st.Ping(ctx); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, fmt.Errorf("ping %s backend: %w", config.Type, err))
		if cerr := st.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		return nil, result.ErrorOrNil()
	}

	seed := store.SeedCategories(config.SeedDataDir)
	f.logger.InfoContext(ctx, "Initialized backend",
		"backend", config.Type.String(),
		"seed_categories", len(seed))

	return &BackendResult{
		Store:   st,
		Tables:  st.Tables(),
		Seed:    seed,
		Cleanup: st.Close,
	}, nil
}

// Cleanup runs every cleanup function and combines their errors.
func Cleanup(fns ...CleanupFunc) error {
	var result *multierror.Error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
