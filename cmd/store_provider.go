// File: cmd/store_provider.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/randfig/internal/config"
	"github.com/xkilldash9x/randfig/internal/generator"
	"github.com/xkilldash9x/randfig/internal/observability"
	"github.com/xkilldash9x/randfig/internal/store"
)

// errNoDatabase is returned when a command needs the database but no URL is set.
var errNoDatabase = errors.New("database URL is not configured (RANDFIG_DATABASE_URL)")

// runStore is the part of store.Store the commands use.
type runStore interface {
	generator.Sink
	EnsureSchema(ctx context.Context) error
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	DocumentsByRunID(ctx context.Context, runID string) ([]generator.Document, error)
}

// storeProvider defines an interface for components that can create a data store.
// This abstraction is crucial for testing, as it allows for
// the injection of a mock store instead of a live database connection.
type storeProvider interface {
	// Create initializes and returns a runStore, a cleanup function to release
	// resources, and an error if the creation fails.
	Create(ctx context.Context, cfg config.Interface) (runStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL through a pgx pool.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	logger := observability.GetLogger()
	if !cfg.Database().Enabled() {
		return nil, nil, errNoDatabase
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	if cfg.Database().AutoMigrate {
		if err := storeService.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}
