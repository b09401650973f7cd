package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cairnhq/cairn-api/internal/api/shared"
	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/redact"
	"github.com/cairnhq/cairn-api/internal/service"
)

// RecordActivityRequest represents the request body for ingesting a task
// mutation event.
type RecordActivityRequest struct {
	TaskID           int64                  `json:"task_id"            validate:"required,gt=0"`
	Actor            *string                `json:"actor,omitempty"`
	Action           string                 `json:"action"             validate:"required"`
	Details          domain.ActivityDetails `json:"details"`
	SkipNotification bool                   `json:"skip_notification"`
}

// RecordActivityResponse carries the persisted entry and how many
// notification records the event fanned out into.
type RecordActivityResponse struct {
	Entry  *domain.Activity `json:"entry"`
	Queued int              `json:"queued"`
}

// ActivityFeedResponse represents the response data for a task's activity feed.
type ActivityFeedResponse struct {
	Entries []domain.Activity `json:"entries"`
}

// ActivityHandler handles activity-related HTTP requests
type ActivityHandler struct {
	activityService service.ActivityService
	logger          *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(
	activityService service.ActivityService,
	logger *slog.Logger,
) *ActivityHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ActivityHandler")
	}

	return &ActivityHandler{
		activityService: activityService,
		logger:          logger.With(slog.String("component", "activity_handler")),
	}
}

// RecordActivity handles POST /internal/activities requests.
// It appends the activity entry and fans it out into queued notification
// records, returning both the entry and the queued count.
func (h *ActivityHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RecordActivityRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.Validate.Struct(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	entry, queued, err := h.activityService.Record(r.Context(), service.RecordActivityRequest{
		TaskID:           req.TaskID,
		Actor:            req.Actor,
		Action:           domain.ActivityAction(req.Action),
		Details:          req.Details,
		SkipNotification: req.SkipNotification,
	})
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to record activity"
		}

		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("activity recorded",
		slog.Int64("task_id", req.TaskID),
		slog.String("action", req.Action),
		slog.Int("queued", len(queued)))
	shared.RespondWithJSON(w, r, http.StatusCreated, RecordActivityResponse{
		Entry:  entry,
		Queued: len(queued),
	})
}

// ListTaskActivity handles GET /internal/tasks/{taskID}/activity requests.
// Entries come back newest first, up to the optional limit query parameter.
func (h *ActivityHandler) ListTaskActivity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		log.Warn("invalid task ID in URL path", slog.String("task_id", chi.URLParam(r, "taskID")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
		return
	}

	entries, err := h.activityService.ListByTask(r.Context(), taskID, limit)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list activity"
		}

		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ActivityFeedResponse{Entries: entries})
}

// parseLimit reads the optional limit query parameter. A missing parameter
// yields zero, which the service treats as the default page size.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}
