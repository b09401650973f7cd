package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cairnhq/cairn-api/internal/api/shared"
	"github.com/cairnhq/cairn-api/internal/redact"
)

// Pinger abstracts the database liveness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the response data for a health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler answers liveness probes, including a store ping so a wedged
// database turns the instance unhealthy.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for HealthHandler")
	}

	return &HealthHandler{
		db:     db,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Check handles GET /healthz requests.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health check store ping failed",
			slog.String("error", redact.Error(err)))
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable,
			HealthResponse{Status: "unavailable"})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
