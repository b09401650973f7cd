package sqlstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
	"github.com/cairnhq/cairn-api/internal/store"
	"github.com/cairnhq/cairn-api/internal/testdb"
)

// mustCreateNotification inserts a pending record and returns it with its ID set.
func mustCreateNotification(
	t *testing.T,
	s store.NotificationStore,
	recipient string,
	channel domain.Channel,
) *domain.Notification {
	t.Helper()

	n, err := domain.NewNotification(recipient, nil, channel,
		"[Cairn] Task updated: Fix login flow", "Alice updated this task.", nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), n))
	require.NotZero(t, n.ID, "Create should populate the record ID")

	return n
}

func TestNotificationStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	t.Run("round trips all fields", func(t *testing.T) {
		testdb.InsertUser(t, db, testdb.UserSeed{Username: "alice"})
		taskID := testdb.InsertTask(t, db, "Fix login flow", "alice")

		rich := "<html><body><p>Alice updated this task.</p></body></html>"
		n, err := domain.NewNotification("alice", &taskID, domain.ChannelEmail,
			"[Cairn] Task updated: Fix login flow", "Alice updated this task.", &rich)
		require.NoError(t, err)
		require.NoError(t, s.Create(ctx, n))

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)

		assert.Equal(t, n.ExternalID, got.ExternalID)
		assert.Equal(t, "alice", got.Recipient)
		require.NotNil(t, got.TaskID)
		assert.Equal(t, taskID, *got.TaskID)
		assert.Equal(t, domain.ChannelEmail, got.Channel)
		assert.Equal(t, n.Subject, got.Subject)
		assert.Equal(t, n.Body, got.Body)
		require.NotNil(t, got.RichBody)
		assert.Equal(t, rich, *got.RichBody)
		assert.Equal(t, domain.NotificationStatusPending, got.Status)
		assert.Zero(t, got.Retries)
		assert.Nil(t, got.SentAt)
		assert.WithinDuration(t, n.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("nullable fields stay null", func(t *testing.T) {
		n := mustCreateNotification(t, s, "bob", domain.ChannelPush)

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)

		assert.Nil(t, got.TaskID)
		assert.Nil(t, got.RichBody)
		assert.Nil(t, got.SentAt)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := s.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrNotificationNotFound)
	})
}

func TestNotificationStore_ListPending(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	// Insert three records with staggered creation times, newest first, to
	// prove ordering comes from the query rather than insertion order.
	base := time.Now().UTC().Add(-time.Hour)
	recipients := []string{"third", "second", "first"}
	for i, recipient := range recipients {
		n, err := domain.NewNotification(recipient, nil, domain.ChannelEmail,
			"[Cairn] Task updated: ordering", "body", nil)
		require.NoError(t, err)
		n.CreatedAt = base.Add(time.Duration(len(recipients)-i) * time.Minute)
		n.UpdatedAt = n.CreatedAt
		require.NoError(t, s.Create(ctx, n))
	}

	t.Run("oldest first", func(t *testing.T) {
		pending, err := s.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 3)

		assert.Equal(t, "first", pending[0].Recipient)
		assert.Equal(t, "second", pending[1].Recipient)
		assert.Equal(t, "third", pending[2].Recipient)
	})

	t.Run("respects limit", func(t *testing.T) {
		pending, err := s.ListPending(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "first", pending[0].Recipient)
	})

	t.Run("excludes claimed records", func(t *testing.T) {
		pending, err := s.ListPending(ctx, 10)
		require.NoError(t, err)

		claimed, err := s.Claim(ctx, pending[0].ID, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, claimed)

		remaining, err := s.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, remaining, len(pending)-1)
	})
}

func TestNotificationStore_Claim(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	t.Run("claims a pending record once", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)

		claimed, err := s.Claim(ctx, n.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, claimed)

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSending, got.Status)

		// A second claim must lose: the record is no longer pending.
		claimed, err = s.Claim(ctx, n.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		n := mustCreateNotification(t, s, "bob", domain.ChannelPush)

		const claimers = 8
		results := make(chan bool, claimers)
		errs := make(chan error, claimers)

		var wg sync.WaitGroup
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := s.Claim(ctx, n.ID, time.Now().UTC())
				results <- claimed
				errs <- err
			}()
		}
		wg.Wait()
		close(results)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		wins := 0
		for claimed := range results {
			if claimed {
				wins++
			}
		}
		assert.Equal(t, 1, wins, "exactly one claimer should win the record")
	})
}

func TestNotificationStore_Transitions(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	claim := func(t *testing.T, n *domain.Notification) {
		t.Helper()
		claimed, err := s.Claim(ctx, n.ID, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, claimed)
	}

	t.Run("mark sent", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
		claim(t, n)

		sentAt := time.Now().UTC()
		require.NoError(t, s.MarkSent(ctx, n.ID, sentAt))

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.WithinDuration(t, sentAt, *got.SentAt, time.Second)
	})

	t.Run("mark retry returns record to pending", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
		claim(t, n)

		require.NoError(t, s.MarkRetry(ctx, n.ID, 1, time.Now().UTC()))

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusPending, got.Status)
		assert.Equal(t, 1, got.Retries)
		assert.Nil(t, got.SentAt)

		// The record is claimable again for the next attempt.
		claimed, err := s.Claim(ctx, n.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("mark failed is terminal", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
		claim(t, n)

		require.NoError(t, s.MarkFailed(ctx, n.ID, 3, time.Now().UTC()))

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusFailed, got.Status)
		assert.Equal(t, 3, got.Retries)

		claimed, err := s.Claim(ctx, n.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, claimed, "failed records must not be claimable")
	})

	t.Run("release keeps retry count", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
		claim(t, n)

		require.NoError(t, s.Release(ctx, n.ID, time.Now().UTC()))

		got, err := s.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusPending, got.Status)
		assert.Zero(t, got.Retries, "release must not count as an attempt")
	})

	t.Run("transitions require the sending state", func(t *testing.T) {
		n := mustCreateNotification(t, s, "alice", domain.ChannelEmail)

		assert.ErrorIs(t, s.MarkSent(ctx, n.ID, time.Now().UTC()), store.ErrUpdateFailed)
		assert.ErrorIs(t, s.MarkRetry(ctx, n.ID, 1, time.Now().UTC()), store.ErrUpdateFailed)
		assert.ErrorIs(t, s.MarkFailed(ctx, n.ID, 1, time.Now().UTC()), store.ErrUpdateFailed)
		assert.ErrorIs(t, s.Release(ctx, n.ID, time.Now().UTC()), store.ErrUpdateFailed)
	})
}

func TestNotificationStore_ReleaseStuck(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	now := time.Now().UTC()

	stale := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
	fresh := mustCreateNotification(t, s, "bob", domain.ChannelEmail)
	for _, n := range []*domain.Notification{stale, fresh} {
		claimed, err := s.Claim(ctx, n.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	// Backdate one claim so it looks like a worker died mid-dispatch.
	backdateUpdatedAt(t, db, stale.ID, now.Add(-2*time.Hour))

	released, err := s.ReleaseStuck(ctx, now.Add(-30*time.Minute), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, released)

	got, err := s.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusPending, got.Status, "stale claim should be released")

	got, err = s.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusSending, got.Status, "recent claim should be left alone")
}

func TestNotificationStore_CountByStatus(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	t.Run("empty queue reports zeros", func(t *testing.T) {
		counts, err := s.CountByStatus(ctx)
		require.NoError(t, err)

		assert.EqualValues(t, 0, counts[domain.NotificationStatusPending])
		assert.EqualValues(t, 0, counts[domain.NotificationStatusSending])
		assert.EqualValues(t, 0, counts[domain.NotificationStatusSent])
		assert.EqualValues(t, 0, counts[domain.NotificationStatusFailed])
	})

	t.Run("counts each status", func(t *testing.T) {
		now := time.Now().UTC()

		mustCreateNotification(t, s, "alice", domain.ChannelEmail)
		mustCreateNotification(t, s, "bob", domain.ChannelEmail)

		claimed := mustCreateNotification(t, s, "carol", domain.ChannelPush)
		ok, err := s.Claim(ctx, claimed.ID, now)
		require.NoError(t, err)
		require.True(t, ok)

		sent := mustCreateNotification(t, s, "dave", domain.ChannelEmail)
		ok, err = s.Claim(ctx, sent.ID, now)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, s.MarkSent(ctx, sent.ID, now))

		counts, err := s.CountByStatus(ctx)
		require.NoError(t, err)

		assert.EqualValues(t, 2, counts[domain.NotificationStatusPending])
		assert.EqualValues(t, 1, counts[domain.NotificationStatusSending])
		assert.EqualValues(t, 1, counts[domain.NotificationStatusSent])
		assert.EqualValues(t, 0, counts[domain.NotificationStatusFailed])
	})
}

func TestNotificationStore_DeleteDelivered(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -30)
	old := now.AddDate(0, 0, -40)

	resolve := func(t *testing.T, n *domain.Notification, terminal domain.NotificationStatus) {
		t.Helper()
		claimed, err := s.Claim(ctx, n.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
		if terminal == domain.NotificationStatusSent {
			require.NoError(t, s.MarkSent(ctx, n.ID, now))
		} else {
			require.NoError(t, s.MarkFailed(ctx, n.ID, 3, now))
		}
	}

	oldSent := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
	resolve(t, oldSent, domain.NotificationStatusSent)
	backdateCreatedAt(t, db, oldSent.ID, old)

	oldFailed := mustCreateNotification(t, s, "bob", domain.ChannelEmail)
	resolve(t, oldFailed, domain.NotificationStatusFailed)
	backdateCreatedAt(t, db, oldFailed.ID, old)

	recentSent := mustCreateNotification(t, s, "carol", domain.ChannelEmail)
	resolve(t, recentSent, domain.NotificationStatusSent)

	// Old but still pending: retention must never touch undelivered records.
	oldPending := mustCreateNotification(t, s, "dave", domain.ChannelPush)
	backdateCreatedAt(t, db, oldPending.ID, old)

	deleted, err := s.DeleteDelivered(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = s.GetByID(ctx, oldSent.ID)
	assert.ErrorIs(t, err, store.ErrNotificationNotFound)
	_, err = s.GetByID(ctx, oldFailed.ID)
	assert.ErrorIs(t, err, store.ErrNotificationNotFound)

	_, err = s.GetByID(ctx, recentSent.ID)
	assert.NoError(t, err)
	_, err = s.GetByID(ctx, oldPending.ID)
	assert.NoError(t, err)
}

func TestNotificationStore_ListByStatus(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	now := time.Now().UTC()

	first := mustCreateNotification(t, s, "alice", domain.ChannelEmail)
	backdateCreatedAt(t, db, first.ID, now.Add(-time.Hour))
	mustCreateNotification(t, s, "bob", domain.ChannelEmail)

	failed := mustCreateNotification(t, s, "carol", domain.ChannelPush)
	claimed, err := s.Claim(ctx, failed.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.MarkFailed(ctx, failed.ID, 3, now))

	pending, err := s.ListByStatus(ctx, domain.NotificationStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "bob", pending[0].Recipient, "inspection lists newest first")
	assert.Equal(t, "alice", pending[1].Recipient)

	failures, err := s.ListByStatus(ctx, domain.NotificationStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "carol", failures[0].Recipient)
}

func TestNotificationStore_WithTx(t *testing.T) {
	t.Parallel()

	db := testdb.Open(t)
	s := sqlstore.NewNotificationStore(db, nil)
	ctx := context.Background()

	// A rolled-back transaction must leave no trace of the insert.
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		n, err := domain.NewNotification("alice", nil, domain.ChannelEmail,
			"[Cairn] Task updated: rollback", "body", nil)
		if err != nil {
			return err
		}
		if err := s.WithTx(tx).Create(ctx, n); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// backdateUpdatedAt rewrites a record's updated_at directly, bypassing the
// store, to simulate the passage of time.
func backdateUpdatedAt(t *testing.T, db *sqlx.DB, id int64, to time.Time) {
	t.Helper()
	_, err := db.Exec(`UPDATE notification_queue SET updated_at = ? WHERE id = ?`, to.UTC(), id)
	require.NoError(t, err)
}

// backdateCreatedAt rewrites a record's created_at directly, bypassing the
// store, to simulate the passage of time.
func backdateCreatedAt(t *testing.T, db *sqlx.DB, id int64, to time.Time) {
	t.Helper()
	_, err := db.Exec(`UPDATE notification_queue SET created_at = ? WHERE id = ?`, to.UTC(), id)
	require.NoError(t, err)
}
