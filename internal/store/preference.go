package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// PreferenceStore is the read-only boundary with the identity data owned by
// the surrounding application: which channels a user has opted into, plus the
// address material (email, push topic) needed at delivery time.
type PreferenceStore interface {
	// Get retrieves the notification preferences for a username.
	// Returns ErrUserNotFound if the user does not exist.
	Get(ctx context.Context, username string) (*domain.Preference, error)

	// WithTx returns a new PreferenceStore instance that uses the provided transaction.
	WithTx(tx *sqlx.Tx) PreferenceStore
}
