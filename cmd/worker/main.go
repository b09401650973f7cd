// Package main implements the standalone Cairn delivery worker. It drains
// the notification queue of a deployment whose API server runs with
// worker.embedded disabled. Several workers can share one queue: the claim
// protocol keeps them from double-sending.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cairnhq/cairn-api/internal/config"
	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/notify"
	"github.com/cairnhq/cairn-api/internal/platform/email"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/platform/ntfy"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("worker configuration loaded",
		"database_driver", cfg.Database.Driver,
		"poll_interval", cfg.Worker.PollInterval(),
		"batch_size", cfg.Worker.BatchSize,
		"max_retries", cfg.Worker.MaxRetries)

	// The API server owns the schema and applies migrations; the worker only
	// opens the store.
	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, appLogger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", "error", err)
		}
	}()

	notifications := sqlstore.NewNotificationStore(db, appLogger)
	preferences := sqlstore.NewPreferenceStore(db, appLogger)

	mailCfg := email.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		Sender:   cfg.Mail.Sender,
	}
	pushCfg := ntfy.Config{
		Server: cfg.Push.Server,
	}

	// An unconfigured transport still gets a sender; deliveries through it
	// fail permanently instead of stalling the queue.
	senders := notify.Senders{
		domain.ChannelEmail: email.NewSender(mailCfg, appLogger),
		domain.ChannelPush:  ntfy.NewSender(pushCfg, nil, appLogger),
	}

	appLogger.Info("delivery transports configured",
		"email", mailCfg.IsConfigured(),
		"push", pushCfg.IsConfigured())

	worker, err := notify.NewWorker(notifications, preferences, senders, notify.Config{
		PollInterval: cfg.Worker.PollInterval(),
		BatchSize:    cfg.Worker.BatchSize,
		MaxRetries:   cfg.Worker.MaxRetries,
		StuckAfter:   cfg.Worker.StuckAfter(),
	}, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize delivery worker: %v", err)
	}

	if err := worker.Run(ctx); err != nil {
		log.Fatalf("Worker error: %v", err)
	}

	appLogger.Info("Worker shutdown completed")
}
