package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// TaskReader implements the store.TaskReader interface against the task and
// watcher tables owned by the surrounding tracker. It is read-only.
type TaskReader struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskReader creates a SQL-backed task reader. If logger is nil, the
// process default logger is used.
func NewTaskReader(db store.DBTX, logger *slog.Logger) *TaskReader {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskReader{
		db:     db,
		logger: logger.With(slog.String("component", "task_reader")),
	}
}

// Ensure TaskReader implements store.TaskReader.
var _ store.TaskReader = (*TaskReader)(nil)

// GetRef implements store.TaskReader.GetRef.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *TaskReader) GetRef(ctx context.Context, taskID int64) (*domain.TaskRef, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`SELECT id, external_id, title FROM tasks WHERE id = ?`)

	var ref domain.TaskRef
	err := s.db.QueryRowxContext(ctx, query, taskID).Scan(&ref.ID, &ref.ExternalID, &ref.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", taskID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to load task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("task", "get", "failed to load task", err)
	}

	return &ref, nil
}

// Recipients implements store.TaskReader.Recipients. Deactivated accounts are
// filtered out here rather than at delivery time so the fan-out never creates
// records nobody can receive.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *TaskReader) Recipients(ctx context.Context, taskID int64) (*domain.TaskRecipients, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ownerQuery := s.db.Rebind(`
		SELECT u.username, u.is_active
		FROM tasks t
		JOIN users u ON u.username = t.owner_username
		WHERE t.id = ?
	`)

	var (
		owner       string
		ownerActive bool
	)
	err := s.db.QueryRowxContext(ctx, ownerQuery, taskID).Scan(&owner, &ownerActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", taskID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to load task owner",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("task", "recipients", "failed to load task owner", err)
	}

	recipients := &domain.TaskRecipients{}
	if ownerActive {
		recipients.Owner = owner
	}

	watcherQuery := s.db.Rebind(`
		SELECT w.username
		FROM task_watchers w
		JOIN users u ON u.username = w.username
		WHERE w.task_id = ? AND u.is_active
		ORDER BY w.username
	`)

	rows, err := s.db.QueryxContext(ctx, watcherQuery, taskID)
	if err != nil {
		log.Error("failed to query task watchers",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("task", "recipients", "failed to query task watchers", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, store.NewStoreError("task", "recipients", "failed to scan watcher row", err)
		}
		recipients.Watchers = append(recipients.Watchers, username)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "recipients", "error iterating watcher rows", err)
	}

	return recipients, nil
}

// WithTx implements store.TaskReader.WithTx.
func (s *TaskReader) WithTx(tx *sqlx.Tx) store.TaskReader {
	return &TaskReader{db: tx, logger: s.logger}
}
