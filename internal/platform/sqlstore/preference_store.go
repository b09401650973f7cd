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

// PreferenceStore implements the store.PreferenceStore interface against the
// identity tables owned by the surrounding tracker. It is read-only: account
// management mutates these rows, never the notification core.
type PreferenceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPreferenceStore creates a SQL-backed preference store. If logger is nil,
// the process default logger is used.
func NewPreferenceStore(db store.DBTX, logger *slog.Logger) *PreferenceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceStore{
		db:     db,
		logger: logger.With(slog.String("component", "preference_store")),
	}
}

// Ensure PreferenceStore implements store.PreferenceStore.
var _ store.PreferenceStore = (*PreferenceStore)(nil)

// Get implements store.PreferenceStore.Get.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PreferenceStore) Get(ctx context.Context, username string) (*domain.Preference, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := s.db.Rebind(`
		SELECT username, email, display_name, is_active, email_notifications, ntfy_topic
		FROM users
		WHERE username = ?
	`)

	var pref domain.Preference
	err := s.db.QueryRowxContext(ctx, query, username).Scan(
		&pref.Username,
		&pref.Email,
		&pref.DisplayName,
		&pref.Active,
		&pref.EmailEnabled,
		&pref.PushTopic,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.String("username", username))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to load notification preferences",
			slog.String("error", err.Error()),
			slog.String("username", username))
		return nil, store.NewStoreError("user", "get", "failed to load preferences", err)
	}

	return &pref, nil
}

// WithTx implements store.PreferenceStore.WithTx.
func (s *PreferenceStore) WithTx(tx *sqlx.Tx) store.PreferenceStore {
	return &PreferenceStore{db: tx, logger: s.logger}
}
