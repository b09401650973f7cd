package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/config"
	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/notify"
	"github.com/cairnhq/cairn-api/internal/platform/email"
	"github.com/cairnhq/cairn-api/internal/platform/ntfy"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
	"github.com/cairnhq/cairn-api/internal/service"
	"github.com/cairnhq/cairn-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sqlx.DB

	// Stores (using interfaces for proper abstraction)
	activities    store.ActivityStore
	tasks         store.TaskReader
	preferences   store.PreferenceStore
	notifications store.NotificationStore

	// Service interfaces
	activityService     service.ActivityService
	notificationService service.NotificationService

	// Embedded delivery worker; nil when worker.embedded is disabled and a
	// dedicated worker deployment drains the queue instead.
	worker       *notify.Worker
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sqlx.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.activities = sqlstore.NewActivityStore(db, logger)
	app.tasks = sqlstore.NewTaskReader(db, logger)
	app.preferences = sqlstore.NewPreferenceStore(db, logger)
	app.notifications = sqlstore.NewNotificationStore(db, logger)

	// Initialize the fan-out enqueuer shared by the activity recorder
	enqueuer := notify.NewEnqueuer(
		app.tasks,
		app.preferences,
		app.notifications,
		cfg.App.BaseURL,
		logger,
	)

	// Initialize activity service
	var err error
	app.activityService, err = service.NewActivityService(
		db,
		app.activities,
		app.tasks,
		enqueuer,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity service: %w", err)
	}

	// Initialize notification service
	app.notificationService, err = service.NewNotificationService(
		app.notifications,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification service: %w", err)
	}

	// Initialize the embedded delivery worker unless delivery belongs to a
	// dedicated worker process
	if cfg.Worker.Embedded {
		app.worker, err = setupWorker(app)
		if err != nil {
			return nil, fmt.Errorf("failed to setup delivery worker: %w", err)
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	// Launch the embedded worker before accepting traffic so records queued
	// by early requests are picked up immediately
	if app.worker != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		app.workerCancel = cancelWorker

		app.workerWG.Add(1)
		go func() {
			defer app.workerWG.Done()
			if err := app.worker.Run(workerCtx); err != nil {
				app.logger.Error("embedded delivery worker exited", "error", err)
			}
		}()
	}

	// Set up router using the application dependencies
	router := app.setupRouter()

	// Start the HTTP server
	err := app.startHTTPServer(ctx, router)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupWorker builds the embedded delivery worker from the application's
// stores and transport configuration.
func setupWorker(app *application) (*notify.Worker, error) {
	mailCfg := email.Config{
		Host:     app.config.Mail.Host,
		Port:     app.config.Mail.Port,
		Username: app.config.Mail.Username,
		Password: app.config.Mail.Password,
		Sender:   app.config.Mail.Sender,
	}
	pushCfg := ntfy.Config{
		Server: app.config.Push.Server,
	}

	// An unconfigured transport still gets a sender; deliveries through it
	// fail permanently instead of stalling the queue.
	senders := notify.Senders{
		domain.ChannelEmail: email.NewSender(mailCfg, app.logger),
		domain.ChannelPush:  ntfy.NewSender(pushCfg, nil, app.logger),
	}

	app.logger.Info("delivery transports configured",
		"email", mailCfg.IsConfigured(),
		"push", pushCfg.IsConfigured())

	return notify.NewWorker(app.notifications, app.preferences, senders, notify.Config{
		PollInterval: app.config.Worker.PollInterval(),
		BatchSize:    app.config.Worker.BatchSize,
		MaxRetries:   app.config.Worker.MaxRetries,
		StuckAfter:   app.config.Worker.StuckAfter(),
	}, app.logger)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the embedded worker and wait for its in-flight batch to resolve
	if app.workerCancel != nil {
		app.workerCancel()
		app.workerWG.Wait()
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
