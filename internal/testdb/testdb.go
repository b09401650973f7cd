// Package testdb provides a file-backed sqlite database for store and
// service tests. Every call to Open gets a fresh database in the test's
// temporary directory with the full schema applied, so tests are isolated
// from each other and can run in parallel without sharing state.
package testdb

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
)

// Open creates a sqlite database in t.TempDir(), applies all migrations, and
// registers cleanup. The database file lives on disk rather than in memory so
// the WAL pragmas behave as they do in production.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := filepath.Join(t.TempDir(), "cairn_test.db")

	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, dsn, quiet)
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	require.NoError(t, sqlstore.Migrate(context.Background(), db, sqlstore.DriverSQLite, quiet),
		"failed to migrate test database")

	return db
}

// UserSeed describes a user row to insert. The zero value of the flag fields
// yields the common case: an active account with email notifications on and
// no push topic.
type UserSeed struct {
	Username      string
	Email         string
	DisplayName   string
	Inactive      bool
	EmailDisabled bool
	NtfyTopic     string
}

// InsertUser inserts a user row. An empty Email defaults to
// username@example.com.
func InsertUser(t *testing.T, db *sqlx.DB, seed UserSeed) {
	t.Helper()

	email := seed.Email
	if email == "" {
		email = seed.Username + "@example.com"
	}

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO users (external_id, username, email, display_name, is_active, email_notifications, ntfy_topic, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New(), seed.Username, email, seed.DisplayName, !seed.Inactive, !seed.EmailDisabled, seed.NtfyTopic, now, now)
	require.NoError(t, err, "failed to insert user %q", seed.Username)
}

// InsertTask inserts a task row owned by the given user and returns its ID.
func InsertTask(t *testing.T, db *sqlx.DB, title, owner string) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO tasks (external_id, title, owner_username, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, uuid.New(), title, owner, now, now).Scan(&id)
	require.NoError(t, err, "failed to insert task %q", title)

	return id
}

// AddWatcher subscribes a user to a task's notifications.
func AddWatcher(t *testing.T, db *sqlx.DB, taskID int64, username string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO task_watchers (task_id, username, created_at)
		VALUES (?, ?, ?)
	`, taskID, username, time.Now().UTC())
	require.NoError(t, err, "failed to add watcher %q to task %d", username, taskID)
}
