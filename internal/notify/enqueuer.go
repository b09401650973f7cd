package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
	"github.com/cairnhq/cairn-api/internal/store"
)

// Enqueuer fans one activity event out into per-recipient, per-channel
// delivery records. It performs no network I/O: it runs inline with the
// triggering request, inside the same transaction as the activity-log insert,
// and leaves all delivery work to the worker.
type Enqueuer struct {
	tasks         store.TaskReader
	preferences   store.PreferenceStore
	notifications store.NotificationStore
	baseURL       string
	logger        *slog.Logger
}

// NewEnqueuer creates an enqueuer reading task audiences and user preferences
// through the given stores and writing delivery records through the
// notification store. baseURL is the tracker's externally reachable root,
// used for the task links in rendered messages. If logger is nil, the process
// default logger is used.
func NewEnqueuer(
	tasks store.TaskReader,
	preferences store.PreferenceStore,
	notifications store.NotificationStore,
	baseURL string,
	logger *slog.Logger,
) *Enqueuer {
	if tasks == nil || preferences == nil || notifications == nil {
		panic("enqueuer stores cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		tasks:         tasks,
		preferences:   preferences,
		notifications: notifications,
		baseURL:       baseURL,
		logger:        logger.With(slog.String("component", "enqueuer")),
	}
}

// WithTx returns an Enqueuer whose stores run inside the provided
// transaction. The caller owns the transaction; this is how the activity
// recorder makes the log insert and the fan-out commit or roll back together.
func (e *Enqueuer) WithTx(tx *sqlx.Tx) *Enqueuer {
	return &Enqueuer{
		tasks:         e.tasks.WithTx(tx),
		preferences:   e.preferences.WithTx(tx),
		notifications: e.notifications.WithTx(tx),
		baseURL:       e.baseURL,
		logger:        e.logger,
	}
}

// Enqueue computes the recipient and channel sets for one activity event and
// inserts one pending delivery record per (recipient, channel) pair. The
// created records are returned so callers and tests can inspect the fan-out;
// production call sites are free to ignore them.
//
// Recipients are the task's owner and watchers, minus the actor (nobody is
// notified of their own action; a nil actor is a system action and suppresses
// nobody). Each remaining recipient contributes the channels their
// preferences enable: email when email notifications are on, push when a
// topic is configured. A recipient with neither yields no records.
func (e *Enqueuer) Enqueue(
	ctx context.Context,
	taskID int64,
	actor *string,
	action domain.ActivityAction,
	details domain.ActivityDetails,
) ([]domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	ref, err := e.tasks.GetRef(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task %d: %w", taskID, err)
	}

	recipients, err := e.recipients(ctx, taskID, actor)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		log.Debug("no recipients for activity",
			slog.Int64("task_id", taskID),
			slog.String("action", string(action)))
		return nil, nil
	}

	actorName := e.actorName(ctx, actor)

	records := []domain.Notification{}
	for _, recipient := range recipients {
		pref, err := e.preferences.Get(ctx, recipient)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				// A stale watcher row; nothing to deliver to.
				log.Warn("skipping recipient without a user record",
					slog.String("recipient", recipient))
				continue
			}
			return nil, fmt.Errorf("failed to load preferences for %q: %w", recipient, err)
		}
		if !pref.Active {
			continue
		}

		for _, channel := range pref.Channels() {
			msg := RenderMessage(channel, action, details, actorName, *ref, e.baseURL)

			notification, err := domain.NewNotification(
				recipient, &taskID, channel, msg.Subject, msg.Body, msg.RichBody)
			if err != nil {
				return nil, fmt.Errorf("failed to build notification for %q: %w", recipient, err)
			}
			if err := e.notifications.Create(ctx, notification); err != nil {
				return nil, fmt.Errorf("failed to queue notification for %q: %w", recipient, err)
			}
			records = append(records, *notification)
		}
	}

	log.Debug("activity fanned out",
		slog.Int64("task_id", taskID),
		slog.String("action", string(action)),
		slog.Int("recipients", len(recipients)),
		slog.Int("queued", len(records)))

	return records, nil
}

// recipients resolves the ordered candidate set for a task: the owner first,
// then watchers, deduplicated, with the actor removed.
func (e *Enqueuer) recipients(ctx context.Context, taskID int64, actor *string) ([]string, error) {
	audience, err := e.tasks.Recipients(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients for task %d: %w", taskID, err)
	}

	seen := make(map[string]bool)
	var recipients []string
	add := func(username string) {
		if username == "" || seen[username] {
			return
		}
		if actor != nil && username == *actor {
			return
		}
		seen[username] = true
		recipients = append(recipients, username)
	}

	add(audience.Owner)
	for _, watcher := range audience.Watchers {
		add(watcher)
	}

	return recipients, nil
}

// actorName resolves the display name to attribute the action to. A nil actor
// is a system action and renders as "Someone"; a lookup failure falls back to
// the bare username rather than blocking the fan-out.
func (e *Enqueuer) actorName(ctx context.Context, actor *string) string {
	if actor == nil {
		return ""
	}
	pref, err := e.preferences.Get(ctx, *actor)
	if err != nil {
		return *actor
	}
	return pref.Name()
}
