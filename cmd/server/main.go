// Package main implements the entry point for the Cairn notification server.
// It ingests task activity events, fans them out into queued notification
// records, and serves the internal inspection API. With worker.embedded
// enabled (the default) it also runs the delivery worker in-process.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/cairnhq/cairn-api/internal/config"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"worker_embedded", cfg.Worker.Embedded)

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
