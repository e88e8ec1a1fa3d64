// Package storage selects and opens the configured knowledge base backend.
package storage

import (
	"context"
	"fmt"

	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
	"github.com/Skufu/medsafe/internal/storage/postgres"
	"github.com/Skufu/medsafe/internal/storage/sqlite"
	"github.com/Skufu/medsafe/internal/storage/yamlfile"
)

// OpenBackend opens the backend named by cfg.Storage.Driver. The memory
// driver has no backend and yields nil.
func OpenBackend(ctx context.Context, cfg *config.Config) (kb.Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return nil, nil
	case config.DriverSQLite:
		b, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverYAML:
		return yamlfile.New(cfg.Storage.YAMLPath), nil
	case config.DriverPostgres:
		b, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Seed returns the dataset from cfg.SeedFile, or the built-in one.
func Seed(cfg *config.Config) (model.Dataset, error) {
	if cfg.SeedFile != "" {
		return kb.LoadSeedFile(cfg.SeedFile)
	}
	return kb.DefaultSeed()
}

// OpenStore opens the backend and loads the KB from it, seeding an empty
// backend. A memory store starts from the seed each time.
func OpenStore(ctx context.Context, cfg *config.Config, opts ...kb.Option) (kb.Store, error) {
	seed, err := Seed(cfg)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	if backend == nil {
		return kb.NewMemoryStore(seed, opts...)
	}

	store, err := kb.Open(ctx, backend, &seed, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}
