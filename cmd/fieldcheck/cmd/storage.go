package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmensah/fieldcheck/internal/config"
	"github.com/jmensah/fieldcheck/storage"
	bboltstorage "github.com/jmensah/fieldcheck/storage/bbolt"
	memorystorage "github.com/jmensah/fieldcheck/storage/memory"
	postgresstorage "github.com/jmensah/fieldcheck/storage/postgres"
)

// openRepository builds the configured storage backend. The returned
// closer is a no-op for the memory backend.
func openRepository(ctx context.Context, cfg *config.AppConfig) (storage.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memorystorage.NewRepository(), func() {}, nil
	case "bbolt":
		if err := os.MkdirAll(cfg.Storage.Path, 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.Storage.Path+"/fieldcheck.db", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("opening bbolt storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "postgres":
		repo, err := postgresstorage.NewRepositoryFromDSN(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
