package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// notificationColumns is the canonical select list for notification rows,
// matching the scan order in scanNotification.
const notificationColumns = `id, external_id, recipient_username, task_id, channel, subject, body, rich_body, status, retries, created_at, updated_at, sent_at`

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows, letting the
// single-row and multi-row paths share one scan function.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// NotificationStore implements the store.NotificationStore interface on the
// shared SQL schema. Every status transition is a single conditional UPDATE,
// which is what lets concurrent workers share the queue without locks held
// across network calls.
type NotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewNotificationStore creates a SQL-backed notification store. It accepts a
// database connection or transaction that should be initialized and managed
// by the caller. If logger is nil, the process default logger is used.
func NewNotificationStore(db store.DBTX, logger *slog.Logger) *NotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure NotificationStore implements store.NotificationStore.
var _ store.NotificationStore = (*NotificationStore)(nil)

// Create implements store.NotificationStore.Create.
// Returns validation errors from the domain Notification if data is invalid.
// Returns store.ErrInvalidEntity if the referenced task does not exist.
func (s *NotificationStore) Create(ctx context.Context, notification *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := notification.Validate(); err != nil {
		log.Warn("notification validation failed during create",
			slog.String("error", err.Error()),
			slog.String("notification_id", notification.ExternalID.String()))
		return err
	}

	query := s.db.Rebind(`
		INSERT INTO notification_queue (external_id, recipient_username, task_id, channel, subject, body, rich_body, status, retries, created_at, updated_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := s.db.QueryRowxContext(ctx, query,
		notification.ExternalID,
		notification.Recipient,
		notification.TaskID,
		notification.Channel,
		notification.Subject,
		notification.Body,
		notification.RichBody,
		notification.Status,
		notification.Retries,
		notification.CreatedAt.UTC(),
		notification.UpdatedAt.UTC(),
		notification.SentAt,
	).Scan(&notification.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during notification creation",
				slog.String("error", err.Error()),
				slog.String("recipient", notification.Recipient))
			return fmt.Errorf("%w: referenced task not found", store.ErrInvalidEntity)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: notification %s", store.ErrDuplicate, notification.ExternalID)
		}
		log.Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("recipient", notification.Recipient),
			slog.String("channel", string(notification.Channel)))
		return store.NewStoreError("notification", "create", "failed to insert notification", err)
	}

	log.Debug("notification queued",
		slog.Int64("notification_id", notification.ID),
		slog.String("recipient", notification.Recipient),
		slog.String("channel", string(notification.Channel)))
	return nil
}

// GetByID implements store.NotificationStore.GetByID.
// Returns store.ErrNotificationNotFound if the record does not exist.
func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`SELECT ` + notificationColumns + ` FROM notification_queue WHERE id = ?`)

	notification, err := scanNotification(s.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		log.Error("failed to get notification",
			slog.String("error", err.Error()),
			slog.Int64("notification_id", id))
		return nil, store.NewStoreError("notification", "get", "failed to load notification", err)
	}

	return notification, nil
}

// ListPending implements store.NotificationStore.ListPending. Records come
// back oldest first so delivery is FIFO-fair across recipients. A
// non-positive limit falls back to a default batch of 50 records.
func (s *NotificationStore) ListPending(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.db.Rebind(`
		SELECT ` + notificationColumns + `
		FROM notification_queue
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`)

	return s.list(ctx, query, domain.NotificationStatusPending, limit)
}

// ListByStatus implements store.NotificationStore.ListByStatus. Records come
// back newest first, which is the order an operator inspecting the queue
// wants. A non-positive limit falls back to 50 records.
func (s *NotificationStore) ListByStatus(
	ctx context.Context,
	status domain.NotificationStatus,
	limit int,
) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.db.Rebind(`
		SELECT ` + notificationColumns + `
		FROM notification_queue
		WHERE status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)

	return s.list(ctx, query, status, limit)
}

// list runs a rebound select over notification rows and scans the results.
func (s *NotificationStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query notifications", slog.String("error", err.Error()))
		return nil, store.NewStoreError("notification", "list", "failed to query notifications", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	notifications := []domain.Notification{}
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			log.Error("failed to scan notification row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("notification", "list", "failed to scan notification row", err)
		}
		notifications = append(notifications, *notification)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("notification", "list", "error iterating notification rows", err)
	}

	return notifications, nil
}

// Claim implements store.NotificationStore.Claim. The conditional WHERE is
// the whole concurrency story: of N workers racing for a record, exactly one
// UPDATE matches and the rest see zero rows affected.
func (s *NotificationStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`
		UPDATE notification_queue
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusSending,
		now.UTC(),
		id,
		domain.NotificationStatusPending,
	)
	if err != nil {
		log.Error("failed to claim notification",
			slog.String("error", err.Error()),
			slog.Int64("notification_id", id))
		return false, store.NewStoreError("notification", "claim", "failed to claim notification", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, store.NewStoreError("notification", "claim", "failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// MarkSent implements store.NotificationStore.MarkSent.
func (s *NotificationStore) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return s.transition(ctx, "mark_sent", `
		UPDATE notification_queue
		SET status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, domain.NotificationStatusSent, sentAt.UTC(), sentAt.UTC(), id, domain.NotificationStatusSending)
}

// MarkRetry implements store.NotificationStore.MarkRetry.
func (s *NotificationStore) MarkRetry(ctx context.Context, id int64, retries int, now time.Time) error {
	return s.transition(ctx, "mark_retry", `
		UPDATE notification_queue
		SET status = ?, retries = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, domain.NotificationStatusPending, retries, now.UTC(), id, domain.NotificationStatusSending)
}

// MarkFailed implements store.NotificationStore.MarkFailed.
func (s *NotificationStore) MarkFailed(ctx context.Context, id int64, retries int, now time.Time) error {
	return s.transition(ctx, "mark_failed", `
		UPDATE notification_queue
		SET status = ?, retries = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, domain.NotificationStatusFailed, retries, now.UTC(), id, domain.NotificationStatusSending)
}

// Release implements store.NotificationStore.Release.
func (s *NotificationStore) Release(ctx context.Context, id int64, now time.Time) error {
	return s.transition(ctx, "release", `
		UPDATE notification_queue
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, domain.NotificationStatusPending, now.UTC(), id, domain.NotificationStatusSending)
}

// transition runs one conditional status update and maps "no row matched" to
// store.ErrUpdateFailed. All transitions out of the sending state funnel
// through here.
func (s *NotificationStore) transition(ctx context.Context, operation, query string, args ...interface{}) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		log.Error("notification status transition failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return store.NewStoreError("notification", operation, "failed to update notification", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("notification", operation, "failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: notification was not in the sending state", store.ErrUpdateFailed)
	}

	return nil
}

// ReleaseStuck implements store.NotificationStore.ReleaseStuck.
func (s *NotificationStore) ReleaseStuck(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`
		UPDATE notification_queue
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusPending,
		now.UTC(),
		domain.NotificationStatusSending,
		cutoff.UTC(),
	)
	if err != nil {
		log.Error("failed to release stuck notifications", slog.String("error", err.Error()))
		return 0, store.NewStoreError("notification", "release_stuck", "failed to release stuck notifications", err)
	}

	released, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("notification", "release_stuck", "failed to get rows affected", err)
	}

	if released > 0 {
		log.Info("released stuck notifications back to pending",
			slog.Int64("count", released),
			slog.Time("cutoff", cutoff.UTC()))
	}

	return released, nil
}

// CountByStatus implements store.NotificationStore.CountByStatus. Statuses
// with no records are present in the result with a zero count.
func (s *NotificationStore) CountByStatus(ctx context.Context) (map[domain.NotificationStatus]int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	counts := map[domain.NotificationStatus]int64{
		domain.NotificationStatusPending: 0,
		domain.NotificationStatusSending: 0,
		domain.NotificationStatusSent:    0,
		domain.NotificationStatusFailed:  0,
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		log.Error("failed to count notifications", slog.String("error", err.Error()))
		return nil, store.NewStoreError("notification", "count", "failed to count notifications", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, store.NewStoreError("notification", "count", "failed to scan count row", err)
		}
		counts[domain.NotificationStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("notification", "count", "error iterating count rows", err)
	}

	return counts, nil
}

// DeleteDelivered implements store.NotificationStore.DeleteDelivered.
func (s *NotificationStore) DeleteDelivered(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`
		DELETE FROM notification_queue
		WHERE status IN (?, ?) AND created_at < ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusSent,
		domain.NotificationStatusFailed,
		cutoff.UTC(),
	)
	if err != nil {
		log.Error("failed to prune delivered notifications", slog.String("error", err.Error()))
		return 0, store.NewStoreError("notification", "delete_delivered", "failed to prune notifications", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("notification", "delete_delivered", "failed to get rows affected", err)
	}

	log.Info("pruned delivered notifications",
		slog.Int64("count", deleted),
		slog.Time("cutoff", cutoff.UTC()))

	return deleted, nil
}

// WithTx implements store.NotificationStore.WithTx.
func (s *NotificationStore) WithTx(tx *sqlx.Tx) store.NotificationStore {
	return &NotificationStore{db: tx, logger: s.logger}
}

// scanNotification reads one notification row in notificationColumns order.
// Timestamps are normalized to UTC regardless of how the driver returns them.
func scanNotification(r rowScanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		channel   string
		status    string
		createdAt time.Time
		updatedAt time.Time
	)

	if err := r.Scan(
		&n.ID,
		&n.ExternalID,
		&n.Recipient,
		&n.TaskID,
		&channel,
		&n.Subject,
		&n.Body,
		&n.RichBody,
		&status,
		&n.Retries,
		&createdAt,
		&updatedAt,
		&n.SentAt,
	); err != nil {
		return nil, err
	}

	n.Channel = domain.Channel(channel)
	n.Status = domain.NotificationStatus(status)
	n.CreatedAt = createdAt.UTC()
	n.UpdatedAt = updatedAt.UTC()
	if n.SentAt != nil {
		sentAt := n.SentAt.UTC()
		n.SentAt = &sentAt
	}

	return &n, nil
}
