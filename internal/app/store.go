package app

import (
	"context"
	"fmt"

	"github.com/mandoo180/telegram-note-bot/internal/config"
	"github.com/mandoo180/telegram-note-bot/internal/store"
)

// OpenStore opens the configured store and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config) (store.Repo, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		repo, err := store.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}
