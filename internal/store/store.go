// Package store opens the configured core.Store backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"flower-pos/internal/config"
	"flower-pos/internal/core"
	"flower-pos/internal/db"
	"flower-pos/internal/store/postgres"
	"flower-pos/internal/store/sqlite"
	"flower-pos/migrations"
)

// Backend is a Store that also accepts catalog imports.
type Backend interface {
	core.Store
	core.CatalogWriter
}

// Open connects to the backend selected by cfg.DatabaseDriver. PostgreSQL migrations run
// only when cfg.AutoMigrate is set; SQLite always creates its schema.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		logger.Info("store opened", "driver", cfg.DatabaseDriver)
		return postgres.New(pool), nil

	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", "driver", cfg.DatabaseDriver, "path", cfg.SQLitePath)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}
