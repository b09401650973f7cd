package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/service"
	"github.com/cairnhq/cairn-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "nil error",
			err:            nil,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "task not found",
			err:            store.ErrTaskNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "wrapped not found error",
			err:            fmt.Errorf("failed to resolve task: %w", store.ErrTaskNotFound),
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "not found error inside service error",
			err: service.NewActivityServiceError("record", "failed to resolve task",
				store.NewStoreError("task", "get", "task lookup failed", store.ErrTaskNotFound)),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "duplicate entity",
			err:            store.ErrDuplicate,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "invalid status filter",
			err:            service.NewNotificationServiceError("list", "unknown status", service.ErrInvalidStatusFilter),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid activity action",
			err:            fmt.Errorf("invalid activity: %w", domain.ErrInvalidActivityAction),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid entity",
			err:            store.ErrInvalidEntity,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown error",
			err:            errors.New("unknown error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := MapErrorToStatusCode(tt.err)
			assert.Equal(t, tt.expectedStatus, status)
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedMessage string
	}{
		{
			name:            "nil error",
			err:             nil,
			expectedMessage: "An unexpected error occurred",
		},
		{
			name:            "task not found",
			err:             store.ErrTaskNotFound,
			expectedMessage: "Task not found",
		},
		{
			name:            "wrapped task not found",
			err:             fmt.Errorf("failed due to: %w", store.ErrTaskNotFound),
			expectedMessage: "Task not found",
		},
		{
			name:            "invalid status filter",
			err:             service.ErrInvalidStatusFilter,
			expectedMessage: "Unknown notification status",
		},
		{
			name:            "invalid activity action",
			err:             domain.ErrInvalidActivityAction,
			expectedMessage: "Unknown activity action",
		},
		{
			name:            "unknown error hides details",
			err:             errors.New("database error: connection refused to db.internal:5432"),
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message := GetSafeErrorMessage(tt.err)
			assert.Equal(t, tt.expectedMessage, message)
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Run("validator error yields field message", func(t *testing.T) {
		err := errors.New(
			"Key: 'RecordActivityRequest.Action' Error:Field validation for 'Action' failed on the 'required' tag",
		)
		assert.Equal(t, "Invalid Action: required field", SanitizeValidationError(err))
	})

	t.Run("non-validator error yields generic message", func(t *testing.T) {
		err := errors.New("some opaque failure with secrets")
		assert.Equal(t, "Validation error", SanitizeValidationError(err))
	})
}
