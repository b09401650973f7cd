package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// ActivityStore implements the store.ActivityStore interface on the shared
// SQL schema. Entries are append-only; there are no update or delete queries.
type ActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewActivityStore creates a SQL-backed activity store. It accepts a database
// connection or transaction that should be initialized and managed by the
// caller. If logger is nil, the process default logger is used.
func NewActivityStore(db store.DBTX, logger *slog.Logger) *ActivityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

// Ensure ActivityStore implements store.ActivityStore.
var _ store.ActivityStore = (*ActivityStore)(nil)

// Create implements store.ActivityStore.Create.
// Returns validation errors from the domain Activity if data is invalid.
// Returns store.ErrInvalidEntity if the referenced task does not exist.
func (s *ActivityStore) Create(ctx context.Context, activity *domain.Activity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := activity.Validate(); err != nil {
		log.Warn("activity validation failed during create",
			slog.String("error", err.Error()),
			slog.String("activity_id", activity.ExternalID.String()))
		return err
	}

	details, err := json.Marshal(activity.Details)
	if err != nil {
		return store.NewStoreError("activity", "create", "failed to encode details", err)
	}

	query := s.db.Rebind(`
		INSERT INTO activity_log (external_id, task_id, actor_username, action, details, skip_notification, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err = s.db.QueryRowxContext(ctx, query,
		activity.ExternalID,
		activity.TaskID,
		activity.Actor,
		activity.Action,
		string(details),
		activity.SkipNotification,
		activity.LoggedAt.UTC(),
	).Scan(&activity.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during activity creation",
				slog.String("error", err.Error()),
				slog.Int64("task_id", activity.TaskID))
			return fmt.Errorf("%w: task with ID %d not found",
				store.ErrInvalidEntity, activity.TaskID)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: activity %s", store.ErrDuplicate, activity.ExternalID)
		}
		log.Error("failed to create activity",
			slog.String("error", err.Error()),
			slog.Int64("task_id", activity.TaskID),
			slog.String("action", string(activity.Action)))
		return store.NewStoreError("activity", "create", "failed to insert activity", err)
	}

	log.Debug("activity logged",
		slog.Int64("activity_id", activity.ID),
		slog.Int64("task_id", activity.TaskID),
		slog.String("action", string(activity.Action)))
	return nil
}

// ListByTask implements store.ActivityStore.ListByTask.
// A non-positive limit falls back to a default page of 50 entries.
func (s *ActivityStore) ListByTask(ctx context.Context, taskID int64, limit int) ([]domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}

	query := s.db.Rebind(`
		SELECT id, external_id, task_id, actor_username, action, details, skip_notification, logged_at
		FROM activity_log
		WHERE task_id = ?
		ORDER BY logged_at DESC, id DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryxContext(ctx, query, taskID, limit)
	if err != nil {
		log.Error("failed to query activity log",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("activity", "list", "failed to query activity log", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []domain.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			log.Error("failed to scan activity row",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID))
			return nil, store.NewStoreError("activity", "list", "failed to scan activity row", err)
		}
		entries = append(entries, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("activity", "list", "error iterating activity rows", err)
	}

	return entries, nil
}

// WithTx implements store.ActivityStore.WithTx.
func (s *ActivityStore) WithTx(tx *sqlx.Tx) store.ActivityStore {
	return &ActivityStore{db: tx, logger: s.logger}
}

// scanActivity reads one activity row from the canonical column list.
func scanActivity(r rowScanner) (*domain.Activity, error) {
	var (
		activity domain.Activity
		action   string
		details  string
		loggedAt time.Time
	)

	if err := r.Scan(
		&activity.ID,
		&activity.ExternalID,
		&activity.TaskID,
		&activity.Actor,
		&action,
		&details,
		&activity.SkipNotification,
		&loggedAt,
	); err != nil {
		return nil, err
	}

	activity.Action = domain.ActivityAction(action)
	activity.LoggedAt = loggedAt.UTC()

	if details != "" {
		if err := json.Unmarshal([]byte(details), &activity.Details); err != nil {
			return nil, fmt.Errorf("failed to decode activity details: %w", err)
		}
	}

	return &activity, nil
}
