// Package backend opens the repository.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/adapters/repository/mongostore"
	"github.com/okian/octofit/internal/adapters/repository/pgstore"
	"github.com/okian/octofit/internal/config"
	"github.com/okian/octofit/pkg/logger"
)

// Open connects to the configured backend and wraps it with metrics.
// The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.Store {
	case config.StoreMemory:
		store = repository.NewMemoryStore()
	case config.StoreMongo:
		store, err = mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, mongostore.WithLogger(log.Named("mongo")))
	case config.StorePostgres:
		store, err = pgstore.Open(ctx, cfg.PostgresURL, pgstore.WithLogger(log.Named("postgres")))
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	log.Info(ctx, "store opened", logger.String("backend", store.Name()))
	return repository.Instrument(store), nil
}
