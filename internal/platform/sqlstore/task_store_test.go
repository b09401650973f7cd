package sqlstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
	"github.com/cairnhq/cairn-api/internal/store"
	"github.com/cairnhq/cairn-api/internal/testdb"
)

func TestTaskReader_GetRef(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewTaskReader(db, nil)
	ctx := context.Background()

	testdb.InsertUser(t, db, testdb.UserSeed{Username: "alice"})
	taskID := testdb.InsertTask(t, db, "Fix login flow", "alice")

	t.Run("resolves identifiers and title", func(t *testing.T) {
		ref, err := s.GetRef(ctx, taskID)
		require.NoError(t, err)

		assert.Equal(t, taskID, ref.ID)
		assert.NotEqual(t, uuid.Nil, ref.ExternalID)
		assert.Equal(t, "Fix login flow", ref.Title)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := s.GetRef(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskReader_Recipients(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewTaskReader(db, nil)
	ctx := context.Background()

	testdb.InsertUser(t, db, testdb.UserSeed{Username: "alice"})
	testdb.InsertUser(t, db, testdb.UserSeed{Username: "bob"})
	testdb.InsertUser(t, db, testdb.UserSeed{Username: "carol"})
	testdb.InsertUser(t, db, testdb.UserSeed{Username: "dora", Inactive: true})

	t.Run("owner plus active watchers", func(t *testing.T) {
		taskID := testdb.InsertTask(t, db, "Fix login flow", "alice")
		testdb.AddWatcher(t, db, taskID, "carol")
		testdb.AddWatcher(t, db, taskID, "bob")
		testdb.AddWatcher(t, db, taskID, "dora")

		recipients, err := s.Recipients(ctx, taskID)
		require.NoError(t, err)

		assert.Equal(t, "alice", recipients.Owner)
		assert.Equal(t, []string{"bob", "carol"}, recipients.Watchers,
			"deactivated watchers are dropped, the rest come back ordered")
	})

	t.Run("deactivated owner yields empty owner", func(t *testing.T) {
		taskID := testdb.InsertTask(t, db, "Orphaned task", "dora")
		testdb.AddWatcher(t, db, taskID, "bob")

		recipients, err := s.Recipients(ctx, taskID)
		require.NoError(t, err)

		assert.Empty(t, recipients.Owner)
		assert.Equal(t, []string{"bob"}, recipients.Watchers)
	})

	t.Run("task with no watchers", func(t *testing.T) {
		taskID := testdb.InsertTask(t, db, "Lonely task", "alice")

		recipients, err := s.Recipients(ctx, taskID)
		require.NoError(t, err)

		assert.Equal(t, "alice", recipients.Owner)
		assert.Empty(t, recipients.Watchers)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := s.Recipients(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}
