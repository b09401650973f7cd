package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cairnhq/cairn-api/internal/api/shared"
	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/redact"
	"github.com/cairnhq/cairn-api/internal/service"
)

// NotificationListResponse represents the response data for a queue listing.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// CleanupRequest represents the request body for retention pruning. A missing
// body or zero value falls back to the default retention window.
type CleanupRequest struct {
	OlderThanDays int `json:"older_than_days" validate:"gte=0"`
}

// CleanupResponse reports how many delivered records were pruned.
type CleanupResponse struct {
	Pruned int64 `json:"pruned"`
}

// NotificationHandler handles queue inspection and maintenance requests.
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(
	notificationService service.NotificationService,
	logger *slog.Logger,
) *NotificationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for NotificationHandler")
	}

	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger.With(slog.String("component", "notification_handler")),
	}
}

// ListNotifications handles GET /internal/notifications requests.
// The status query parameter is required; limit is optional.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	status := r.URL.Query().Get("status")
	if status == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Status query parameter is required")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
		return
	}

	records, err := h.notificationService.List(r.Context(), domain.NotificationStatus(status), limit)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list notifications"
		}

		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("listed notifications",
		slog.String("status", status),
		slog.Int("count", len(records)))
	shared.RespondWithJSON(w, r, http.StatusOK, NotificationListResponse{Notifications: records})
}

// GetStats handles GET /internal/notifications/stats requests, reporting
// record counts per delivery status.
func (h *NotificationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.notificationService.Stats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to compute queue stats", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// Cleanup handles POST /internal/notifications/cleanup requests, pruning
// delivered (sent or failed) records older than the requested window.
func (h *NotificationHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// The body is optional: an empty POST prunes with the default retention.
	var req CleanupRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	olderThan := time.Duration(req.OlderThanDays) * 24 * time.Hour
	pruned, err := h.notificationService.Cleanup(r.Context(), olderThan)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to prune notifications", err)
		return
	}

	log.Info("notification cleanup requested",
		slog.Int("older_than_days", req.OlderThanDays),
		slog.Int64("pruned", pruned))
	shared.RespondWithJSON(w, r, http.StatusOK, CleanupResponse{Pruned: pruned})
}
