package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// TaskReader is the read-only boundary with the task and watcher data owned
// by the surrounding application. The notification core never writes tasks.
type TaskReader interface {
	// GetRef retrieves the identifiers and title of a task for rendering.
	// Returns ErrTaskNotFound if the task does not exist.
	GetRef(ctx context.Context, taskID int64) (*domain.TaskRef, error)

	// Recipients resolves the notification audience of a task: its owner
	// plus explicit watchers, restricted to active users. Owner is empty when
	// the owning account is deactivated.
	// Returns ErrTaskNotFound if the task does not exist.
	Recipients(ctx context.Context, taskID int64) (*domain.TaskRecipients, error)

	// WithTx returns a new TaskReader instance that uses the provided transaction.
	WithTx(tx *sqlx.Tx) TaskReader
}
