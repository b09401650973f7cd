package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cairnhq/cairn-api/internal/api"
	apiMiddleware "github.com/cairnhq/cairn-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	// Create a router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware) // Add trace IDs for improved error handling

	// Create API handlers using the application's services
	activityHandler := api.NewActivityHandler(app.activityService, app.logger)
	notificationHandler := api.NewNotificationHandler(app.notificationService, app.logger)
	healthHandler := api.NewHealthHandler(app.db, app.logger)

	// Register routes. This surface is called by the tracker core and by
	// operators, never by end users directly.
	r.Route("/internal", func(r chi.Router) {
		// Activity recording and feed
		r.Post("/activities", activityHandler.RecordActivity)
		r.Get("/tasks/{taskID}/activity", activityHandler.ListTaskActivity)

		// Queue inspection and maintenance
		r.Get("/notifications", notificationHandler.ListNotifications)
		r.Get("/notifications/stats", notificationHandler.GetStats)
		r.Post("/notifications/cleanup", notificationHandler.Cleanup)
	})

	// Health check endpoint
	r.Get("/healthz", healthHandler.Check)

	return r
}
