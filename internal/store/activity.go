package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// ActivityStore defines the interface for activity-log persistence. Entries
// are append-only: there is no update or delete operation, matching the
// audit-trail role of the log.
type ActivityStore interface {
	// Create appends a new activity entry. The entry's internal ID is
	// populated from the store on success.
	// Returns validation errors from the domain Activity if data is invalid.
	Create(ctx context.Context, activity *domain.Activity) error

	// ListByTask retrieves the entries for a task, newest first, up to limit.
	// Returns an empty slice if the task has no entries.
	ListByTask(ctx context.Context, taskID int64, limit int) ([]domain.Activity, error)

	// WithTx returns a new ActivityStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sqlx.Tx) ActivityStore
}
