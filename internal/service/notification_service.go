package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// defaultRetention is how long delivered records are kept when a cleanup
// request does not say otherwise.
const defaultRetention = 30 * 24 * time.Hour

// NotificationService is the administrative surface of the delivery queue.
// Delivery itself never goes through here; the worker talks to the store
// directly.
type NotificationService interface {
	// List retrieves records in the given status, newest first, up to limit.
	// Returns ErrInvalidStatusFilter for a status outside the state machine.
	List(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.Notification, error)

	// Stats reports how many records sit in each status, every status
	// present.
	Stats(ctx context.Context) (map[domain.NotificationStatus]int64, error)

	// Cleanup removes sent and failed records older than the given age and
	// reports how many were removed. A non-positive age falls back to the
	// default retention of 30 days. Pending and in-flight records are never
	// touched.
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// notificationServiceImpl implements the NotificationService interface.
type notificationServiceImpl struct {
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewNotificationService creates a NotificationService. Returns an error if
// the notification store is nil.
func NewNotificationService(
	notifications store.NotificationStore,
	logger *slog.Logger,
) (NotificationService, error) {
	if notifications == nil {
		return nil, NewNotificationServiceError("new", "notification store cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &notificationServiceImpl{
		notifications: notifications,
		logger:        logger.With(slog.String("component", "notification_service")),
	}, nil
}

// List implements NotificationService.List.
func (s *notificationServiceImpl) List(
	ctx context.Context,
	status domain.NotificationStatus,
	limit int,
) ([]domain.Notification, error) {
	if !status.IsValid() {
		return nil, NewNotificationServiceError("list", "unknown status", ErrInvalidStatusFilter)
	}

	records, err := s.notifications.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, NewNotificationServiceError("list", "failed to list records", err)
	}
	return records, nil
}

// Stats implements NotificationService.Stats.
func (s *notificationServiceImpl) Stats(
	ctx context.Context,
) (map[domain.NotificationStatus]int64, error) {
	counts, err := s.notifications.CountByStatus(ctx)
	if err != nil {
		return nil, NewNotificationServiceError("stats", "failed to count records", err)
	}
	return counts, nil
}

// Cleanup implements NotificationService.Cleanup.
func (s *notificationServiceImpl) Cleanup(
	ctx context.Context,
	olderThan time.Duration,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if olderThan <= 0 {
		olderThan = defaultRetention
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	pruned, err := s.notifications.DeleteDelivered(ctx, cutoff)
	if err != nil {
		return 0, NewNotificationServiceError("cleanup", "failed to prune records", err)
	}

	log.Info("pruned delivered notifications",
		slog.Int64("count", pruned),
		slog.Time("cutoff", cutoff))
	return pruned, nil
}
