package sqlstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
	"github.com/cairnhq/cairn-api/internal/store"
	"github.com/cairnhq/cairn-api/internal/testdb"
)

func TestPreferenceStore_Get(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewPreferenceStore(db, nil)
	ctx := context.Background()

	testdb.InsertUser(t, db, testdb.UserSeed{
		Username:    "alice",
		Email:       "alice@example.org",
		DisplayName: "Alice Chen",
		NtfyTopic:   "cairn-alice",
	})
	testdb.InsertUser(t, db, testdb.UserSeed{
		Username:      "bob",
		EmailDisabled: true,
	})
	testdb.InsertUser(t, db, testdb.UserSeed{
		Username: "carol",
		Inactive: true,
	})

	t.Run("resolves a fully configured user", func(t *testing.T) {
		pref, err := s.Get(ctx, "alice")
		require.NoError(t, err)

		assert.Equal(t, "alice", pref.Username)
		assert.Equal(t, "alice@example.org", pref.Email)
		assert.Equal(t, "Alice Chen", pref.DisplayName)
		assert.True(t, pref.Active)
		assert.True(t, pref.EmailEnabled)
		assert.Equal(t, "cairn-alice", pref.PushTopic)

		assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelPush}, pref.Channels())
		assert.Equal(t, "Alice Chen", pref.Name())
	})

	t.Run("opt-outs come through", func(t *testing.T) {
		pref, err := s.Get(ctx, "bob")
		require.NoError(t, err)

		assert.False(t, pref.EmailEnabled)
		assert.Empty(t, pref.PushTopic)
		assert.Empty(t, pref.Channels(), "no channels when email is off and no topic is set")
		assert.Equal(t, "bob", pref.Name(), "display name falls back to username")
	})

	t.Run("deactivated accounts are still readable", func(t *testing.T) {
		pref, err := s.Get(ctx, "carol")
		require.NoError(t, err)
		assert.False(t, pref.Active)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Get(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}
