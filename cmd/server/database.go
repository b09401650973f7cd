package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/config"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
)

// setupDatabase opens the configured database and applies any pending
// migrations. The returned handle is pooled and ready for use; callers own
// closing it.
func setupDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlstore.Migrate(ctx, db, cfg.Database.Driver, logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
