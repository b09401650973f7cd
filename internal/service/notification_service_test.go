package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/sqlstore"
	"github.com/cairnhq/cairn-api/internal/service"
	"github.com/cairnhq/cairn-api/internal/store"
	"github.com/cairnhq/cairn-api/internal/testdb"
)

// newNotificationService wires the queue admin service over a fresh test
// database, returning the backing store for seeding.
func newNotificationService(t *testing.T) (service.NotificationService, store.NotificationStore, *sqlx.DB) {
	t.Helper()

	db := testdb.Open(t)
	notifications := sqlstore.NewNotificationStore(db, quietLogger())

	svc, err := service.NewNotificationService(notifications, quietLogger())
	require.NoError(t, err)

	return svc, notifications, db
}

// seedRecord inserts one record and walks it to the given terminal status.
func seedRecord(
	t *testing.T,
	s store.NotificationStore,
	recipient string,
	status domain.NotificationStatus,
) *domain.Notification {
	t.Helper()
	ctx := context.Background()

	n, err := domain.NewNotification(recipient, nil, domain.ChannelEmail,
		"Task updated: seed", "body", nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, n))

	now := time.Now().UTC()
	switch status {
	case domain.NotificationStatusPending:
		// Created pending.
	case domain.NotificationStatusSending:
		mustClaim(t, s, n.ID)
	case domain.NotificationStatusSent:
		mustClaim(t, s, n.ID)
		require.NoError(t, s.MarkSent(ctx, n.ID, now))
	case domain.NotificationStatusFailed:
		mustClaim(t, s, n.ID)
		require.NoError(t, s.MarkFailed(ctx, n.ID, 3, now))
	}
	return n
}

func mustClaim(t *testing.T, s store.NotificationStore, id int64) {
	t.Helper()

	ok, err := s.Claim(context.Background(), id, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNotificationService_List(t *testing.T) {
	t.Parallel()

	svc, notifications, _ := newNotificationService(t)
	ctx := context.Background()

	seedRecord(t, notifications, "alice", domain.NotificationStatusPending)
	seedRecord(t, notifications, "bob", domain.NotificationStatusSent)
	seedRecord(t, notifications, "carol", domain.NotificationStatusFailed)

	t.Run("filters by status", func(t *testing.T) {
		records, err := svc.List(ctx, domain.NotificationStatusSent, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "bob", records[0].Recipient)
	})

	t.Run("empty status bucket", func(t *testing.T) {
		records, err := svc.List(ctx, domain.NotificationStatusSending, 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.List(ctx, domain.NotificationStatus("queued"), 10)
		assert.ErrorIs(t, err, service.ErrInvalidStatusFilter)
	})
}

func TestNotificationService_Stats(t *testing.T) {
	t.Parallel()

	svc, notifications, _ := newNotificationService(t)
	ctx := context.Background()

	t.Run("empty queue reports all statuses", func(t *testing.T) {
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, map[domain.NotificationStatus]int64{
			domain.NotificationStatusPending: 0,
			domain.NotificationStatusSending: 0,
			domain.NotificationStatusSent:    0,
			domain.NotificationStatusFailed:  0,
		}, stats)
	})

	t.Run("counts records per status", func(t *testing.T) {
		seedRecord(t, notifications, "alice", domain.NotificationStatusPending)
		seedRecord(t, notifications, "alice", domain.NotificationStatusPending)
		seedRecord(t, notifications, "bob", domain.NotificationStatusSent)
		seedRecord(t, notifications, "carol", domain.NotificationStatusFailed)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(2), stats[domain.NotificationStatusPending])
		assert.Equal(t, int64(0), stats[domain.NotificationStatusSending])
		assert.Equal(t, int64(1), stats[domain.NotificationStatusSent])
		assert.Equal(t, int64(1), stats[domain.NotificationStatusFailed])
	})
}

func TestNotificationService_Cleanup(t *testing.T) {
	t.Parallel()

	svc, notifications, db := newNotificationService(t)
	ctx := context.Background()

	backdate := func(id int64, age time.Duration) {
		_, err := db.Exec(db.Rebind(
			`UPDATE notification_queue SET created_at = ? WHERE id = ?`),
			time.Now().UTC().Add(-age), id)
		require.NoError(t, err)
	}

	oldSent := seedRecord(t, notifications, "alice", domain.NotificationStatusSent)
	backdate(oldSent.ID, 40*24*time.Hour)
	oldFailed := seedRecord(t, notifications, "bob", domain.NotificationStatusFailed)
	backdate(oldFailed.ID, 40*24*time.Hour)
	oldPending := seedRecord(t, notifications, "carol", domain.NotificationStatusPending)
	backdate(oldPending.ID, 40*24*time.Hour)
	freshSent := seedRecord(t, notifications, "dave", domain.NotificationStatusSent)

	t.Run("prunes old delivered records only", func(t *testing.T) {
		pruned, err := svc.Cleanup(ctx, 0) // default retention
		require.NoError(t, err)
		assert.Equal(t, int64(2), pruned)

		// Old but undelivered records are never pruned; the worker still
		// owes them a delivery attempt.
		_, err = notifications.GetByID(ctx, oldPending.ID)
		assert.NoError(t, err)
		_, err = notifications.GetByID(ctx, freshSent.ID)
		assert.NoError(t, err)

		_, err = notifications.GetByID(ctx, oldSent.ID)
		assert.ErrorIs(t, err, store.ErrNotificationNotFound)
		_, err = notifications.GetByID(ctx, oldFailed.ID)
		assert.ErrorIs(t, err, store.ErrNotificationNotFound)
	})

	t.Run("custom retention window", func(t *testing.T) {
		pruned, err := svc.Cleanup(ctx, time.Nanosecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned, "the fresh sent record falls inside a zero-width window")

		_, err = notifications.GetByID(ctx, freshSent.ID)
		assert.ErrorIs(t, err, store.ErrNotificationNotFound)
	})
}
