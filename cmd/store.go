package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database/postgres"
)

// connectStore opens the PostgreSQL store for data commands. The caller must
// close the returned pool.
func connectStore(cfg *config.Config) (*postgres.Store, *postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	store, pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return store, pool, nil
}
