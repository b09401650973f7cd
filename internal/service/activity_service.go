package service

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/notify"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// RecordActivityRequest carries one task mutation into the recorder.
type RecordActivityRequest struct {
	TaskID int64

	// Actor is the username behind the mutation; nil marks a system action.
	Actor *string

	Action  domain.ActivityAction
	Details domain.ActivityDetails

	// SkipNotification suppresses the notification fan-out for this entry
	// while still writing it to the log.
	SkipNotification bool
}

// ActivityService records task mutations and serves the activity feed.
type ActivityService interface {
	// Record appends an activity entry and, unless the request opts out,
	// fans it out into queued notification records in the same transaction.
	// It returns the persisted entry and the records it queued.
	Record(ctx context.Context, req RecordActivityRequest) (*domain.Activity, []domain.Notification, error)

	// ListByTask retrieves a task's activity entries, newest first, up to
	// limit. A non-positive limit falls back to the store's default page.
	ListByTask(ctx context.Context, taskID int64, limit int) ([]domain.Activity, error)
}

// activityServiceImpl implements the ActivityService interface.
type activityServiceImpl struct {
	db         *sqlx.DB
	activities store.ActivityStore
	tasks      store.TaskReader
	enqueuer   *notify.Enqueuer
	logger     *slog.Logger
}

// NewActivityService creates an ActivityService. The db handle is needed on
// top of the stores because Record opens the transaction that the log insert
// and the fan-out share. Returns an error if any required dependency is nil.
func NewActivityService(
	db *sqlx.DB,
	activities store.ActivityStore,
	tasks store.TaskReader,
	enqueuer *notify.Enqueuer,
	logger *slog.Logger,
) (ActivityService, error) {
	if db == nil {
		return nil, NewActivityServiceError("new", "db cannot be nil", nil)
	}
	if activities == nil {
		return nil, NewActivityServiceError("new", "activity store cannot be nil", nil)
	}
	if tasks == nil {
		return nil, NewActivityServiceError("new", "task reader cannot be nil", nil)
	}
	if enqueuer == nil {
		return nil, NewActivityServiceError("new", "enqueuer cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &activityServiceImpl{
		db:         db,
		activities: activities,
		tasks:      tasks,
		enqueuer:   enqueuer,
		logger:     logger.With(slog.String("component", "activity_service")),
	}, nil
}

// Record implements ActivityService.Record. The entry is always persisted;
// the fan-out runs inside the same transaction so an enqueue failure leaves
// no half-recorded event behind.
func (s *activityServiceImpl) Record(
	ctx context.Context,
	req RecordActivityRequest,
) (*domain.Activity, []domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	activity, err := domain.NewActivity(
		req.TaskID, req.Actor, req.Action, req.Details, req.SkipNotification)
	if err != nil {
		return nil, nil, NewActivityServiceError("record", "invalid activity", err)
	}

	if _, err := s.tasks.GetRef(ctx, req.TaskID); err != nil {
		return nil, nil, NewActivityServiceError("record", "failed to resolve task", err)
	}

	var queued []domain.Notification
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := s.activities.WithTx(tx).Create(ctx, activity); err != nil {
			return NewActivityServiceError("record", "failed to persist activity entry", err)
		}

		if req.SkipNotification {
			return nil
		}

		records, err := s.enqueuer.WithTx(tx).Enqueue(
			ctx, req.TaskID, req.Actor, req.Action, req.Details)
		if err != nil {
			return NewActivityServiceError("record", "failed to queue notifications", err)
		}
		queued = records
		return nil
	})
	if err != nil {
		log.Error("failed to record activity",
			slog.Int64("task_id", req.TaskID),
			slog.String("action", string(req.Action)),
			slog.String("error", err.Error()))
		return nil, nil, err
	}

	log.Info("activity recorded",
		slog.Int64("task_id", req.TaskID),
		slog.String("action", string(req.Action)),
		slog.Bool("skip_notification", req.SkipNotification),
		slog.Int("queued", len(queued)))

	return activity, queued, nil
}

// ListByTask implements ActivityService.ListByTask.
func (s *activityServiceImpl) ListByTask(
	ctx context.Context,
	taskID int64,
	limit int,
) ([]domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.tasks.GetRef(ctx, taskID); err != nil {
		return nil, NewActivityServiceError("list_by_task", "failed to resolve task", err)
	}

	entries, err := s.activities.ListByTask(ctx, taskID, limit)
	if err != nil {
		log.Error("failed to list activity entries",
			slog.Int64("task_id", taskID),
			slog.String("error", err.Error()))
		return nil, NewActivityServiceError("list_by_task", "failed to list entries", err)
	}

	return entries, nil
}
