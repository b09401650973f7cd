package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// NotificationStore defines the interface for the notification queue. The
// enqueuer writes pending records; the worker claims and resolves them. All
// status mutations are single-row conditional updates, which is what makes
// the queue safe to share between concurrent worker processes.
type NotificationStore interface {
	// Create inserts a new notification record. The record's internal ID is
	// populated from the store on success.
	Create(ctx context.Context, notification *domain.Notification) error

	// GetByID retrieves a record by its internal ID.
	// Returns ErrNotificationNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)

	// ListPending returns up to limit pending records, oldest first, so
	// delivery is FIFO-fair across recipients.
	ListPending(ctx context.Context, limit int) ([]domain.Notification, error)

	// Claim transitions a record from pending to sending. It reports false
	// when the record was no longer pending (already claimed or resolved by
	// another worker), which callers must treat as "skip, not an error".
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)

	// MarkSent resolves a claimed record as delivered, setting sent_at.
	// Returns ErrUpdateFailed if the record was not in the sending state.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	// MarkRetry returns a claimed record to pending with the given retry
	// count after a failed delivery attempt.
	// Returns ErrUpdateFailed if the record was not in the sending state.
	MarkRetry(ctx context.Context, id int64, retries int, now time.Time) error

	// MarkFailed resolves a claimed record as terminally failed with the
	// given retry count.
	// Returns ErrUpdateFailed if the record was not in the sending state.
	MarkFailed(ctx context.Context, id int64, retries int, now time.Time) error

	// Release returns a claimed record to pending without touching its retry
	// count. Used when shutdown interrupts a claimed batch before dispatch.
	// Returns ErrUpdateFailed if the record was not in the sending state.
	Release(ctx context.Context, id int64, now time.Time) error

	// ReleaseStuck returns every sending record older than cutoff to pending
	// and reports how many were released. This is the crash-recovery path:
	// records stranded mid-dispatch by a dead worker become claimable again.
	ReleaseStuck(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)

	// ListByStatus retrieves records in the given status, newest first, up
	// to limit. Used for administrative inspection.
	ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.Notification, error)

	// CountByStatus reports how many records sit in each status. Statuses
	// with no records are present in the result with a zero count.
	CountByStatus(ctx context.Context) (map[domain.NotificationStatus]int64, error)

	// DeleteDelivered removes sent and failed records created before cutoff
	// and reports how many were removed. Retention pruning is an explicit
	// operator action; nothing calls this automatically.
	DeleteDelivered(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new NotificationStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sqlx.Tx) NotificationStore
}
