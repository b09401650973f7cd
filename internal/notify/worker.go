package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/store"
)

// Config holds the delivery worker's tuning knobs.
type Config struct {
	// PollInterval is the pause between polling cycles. It doubles as the
	// retry backoff: a failed record waits at least one interval before it
	// is reconsidered.
	PollInterval time.Duration

	// BatchSize caps how many records one cycle claims.
	BatchSize int

	// MaxRetries is the number of failed delivery attempts before a record
	// is marked failed and never retried.
	MaxRetries int

	// StuckAfter is how long a record may sit in the sending state before
	// the in-loop reclaim treats its worker as dead and releases it.
	StuckAfter time.Duration
}

// DefaultConfig returns the worker configuration used when a field is left
// at its zero value.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		MaxRetries:   3,
		StuckAfter:   30 * time.Minute,
	}
}

// normalize fills zero-valued fields from the defaults.
func (c Config) normalize() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = defaults.StuckAfter
	}
	return c
}

// Worker is the delivery loop. Each cycle it claims due records with a
// conditional pending-to-sending update, dispatches them to their channel's
// sender, and resolves each to sent, back to pending for retry, or failed.
// The conditional claim is the only concurrency control: several worker
// processes can share one queue without locks.
//
// The clock and the inter-cycle sleep are struct fields so tests can drive
// cycles deterministically.
type Worker struct {
	notifications store.NotificationStore
	preferences   store.PreferenceStore
	senders       Senders
	cfg           Config
	logger        *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a delivery worker. Zero-valued config fields fall back
// to DefaultConfig, and the sender registry must cover every channel. If
// logger is nil, the process default logger is used.
func NewWorker(
	notifications store.NotificationStore,
	preferences store.PreferenceStore,
	senders Senders,
	cfg Config,
	logger *slog.Logger,
) (*Worker, error) {
	if notifications == nil {
		return nil, errors.New("notification store cannot be nil")
	}
	if preferences == nil {
		return nil, errors.New("preference store cannot be nil")
	}
	if err := senders.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		notifications: notifications,
		preferences:   preferences,
		senders:       senders,
		cfg:           cfg.normalize(),
		logger:        logger.With(slog.String("component", "notification_worker")),
		now:           func() time.Time { return time.Now().UTC() },
		sleep:         sleepContext,
	}, nil
}

// Run executes the delivery loop until ctx is cancelled: recover stranded
// records, then cycle through claim, dispatch, resolve, and sleep. Shutdown
// is cooperative; the batch being resolved when cancellation arrives is
// finished or released before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("notification worker starting",
		slog.Duration("poll_interval", w.cfg.PollInterval),
		slog.Int("batch_size", w.cfg.BatchSize),
		slog.Int("max_retries", w.cfg.MaxRetries))

	if _, err := w.Recover(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// Not fatal: anything left in sending falls to the in-loop reclaim.
		w.logger.Error("startup recovery failed",
			slog.String("error", err.Error()))
	}

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("delivery cycle failed",
				slog.String("error", err.Error()))
		}

		if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
			w.logger.Info("notification worker stopped")
			return nil
		}
	}
}

// Recover resets records stranded in the sending state by a crashed previous
// run back to pending, so in-flight work from a dead process is retried
// rather than stuck forever. Anything older than one poll interval cannot
// still be owned by a live dispatch of this process, because it starts
// polling only after Recover returns.
func (w *Worker) Recover(ctx context.Context) (int64, error) {
	now := w.now()
	released, err := w.notifications.ReleaseStuck(ctx, now.Add(-w.cfg.PollInterval), now)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		w.logger.Info("recovered notifications from interrupted run",
			slog.Int64("count", released))
	}
	return released, nil
}

// RunOnce executes one delivery cycle and reports how many records it
// resolved. Storage failures abort the cycle: claimed-but-undispatched
// records are released, and the next cycle starts fresh.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()

	// Rescue records a crashed sibling worker left claimed.
	if _, err := w.notifications.ReleaseStuck(ctx, now.Add(-w.cfg.StuckAfter), now); err != nil {
		return 0, err
	}

	pending, err := w.notifications.ListPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	claimed := make([]domain.Notification, 0, len(pending))
	for i := range pending {
		ok, err := w.notifications.Claim(ctx, pending[i].ID, w.now())
		if err != nil {
			w.releaseClaims(ctx, claimed)
			return 0, err
		}
		if ok {
			claimed = append(claimed, pending[i])
		}
		// A lost claim means another worker owns the record; skip it.
	}

	processed := 0
	for i := range claimed {
		if ctx.Err() != nil {
			// Cancelled before dispatch: hand the untouched claims back.
			w.releaseClaims(ctx, claimed[i:])
			return processed, ctx.Err()
		}
		w.deliver(ctx, &claimed[i])
		processed++
	}

	return processed, nil
}

// deliver runs one delivery attempt and resolves the record's status. The
// status write uses a cancellation-detached context so a shutdown arriving
// mid-dispatch can never strand the record in sending.
func (w *Worker) deliver(ctx context.Context, n *domain.Notification) {
	log := w.logger.With(
		slog.Int64("notification_id", n.ID),
		slog.String("channel", string(n.Channel)),
		slog.String("recipient", n.Recipient))

	err := w.dispatch(ctx, n)

	resolveCtx := context.WithoutCancel(ctx)
	if err == nil {
		if markErr := w.notifications.MarkSent(resolveCtx, n.ID, w.now()); markErr != nil {
			log.Error("delivered but failed to mark record sent",
				slog.String("error", markErr.Error()))
			return
		}
		log.Info("notification delivered", slog.Int("attempt", n.Retries+1))
		return
	}

	retries := n.Retries + 1
	if retries >= w.cfg.MaxRetries {
		if markErr := w.notifications.MarkFailed(resolveCtx, n.ID, retries, w.now()); markErr != nil {
			log.Error("failed to mark record failed",
				slog.String("error", markErr.Error()))
			return
		}
		log.Error("notification failed permanently",
			slog.String("error", err.Error()),
			slog.String("kind", string(KindOf(err))),
			slog.Int("retries", retries))
		return
	}

	if markErr := w.notifications.MarkRetry(resolveCtx, n.ID, retries, w.now()); markErr != nil {
		log.Error("failed to return record to pending",
			slog.String("error", markErr.Error()))
		return
	}
	log.Warn("delivery attempt failed, will retry",
		slog.String("error", err.Error()),
		slog.String("kind", string(KindOf(err))),
		slog.Int("retries", retries))
}

// dispatch resolves the destination for one record and hands it to its
// channel's sender.
func (w *Worker) dispatch(ctx context.Context, n *domain.Notification) error {
	sender := w.senders[n.Channel]
	if sender == nil {
		return Permanentf("no sender registered for channel %q", n.Channel)
	}

	destination, err := w.destination(ctx, n)
	if err != nil {
		return err
	}

	return sender.Send(ctx, Delivery{Notification: n, Destination: destination})
}

// destination resolves where a record should be delivered right now, from
// the recipient's current preferences. Records whose recipient has vanished,
// been deactivated, or lost the channel's destination fail permanently; the
// retry ceiling then retires them.
func (w *Worker) destination(ctx context.Context, n *domain.Notification) (string, error) {
	pref, err := w.preferences.Get(ctx, n.Recipient)
	if err != nil {
		if store.IsNotFoundError(err) {
			return "", Permanentf("recipient %q does not exist", n.Recipient)
		}
		return "", Transientf("failed to resolve recipient %q: %w", n.Recipient, err)
	}
	if !pref.Active {
		return "", Permanentf("recipient %q is deactivated", n.Recipient)
	}

	switch n.Channel {
	case domain.ChannelEmail:
		if pref.Email == "" {
			return "", Permanentf("recipient %q has no email address", n.Recipient)
		}
		return pref.Email, nil
	case domain.ChannelPush:
		if pref.PushTopic == "" {
			return "", Permanentf("recipient %q has no push topic configured", n.Recipient)
		}
		return pref.PushTopic, nil
	default:
		return "", Permanentf("unsupported channel %q", n.Channel)
	}
}

// releaseClaims hands claimed-but-undispatched records back to the queue
// with their retry counts untouched. Best effort: a record we cannot release
// is rescued later by the stuck reclaim.
func (w *Worker) releaseClaims(ctx context.Context, claimed []domain.Notification) {
	releaseCtx := context.WithoutCancel(ctx)
	for i := range claimed {
		if err := w.notifications.Release(releaseCtx, claimed[i].ID, w.now()); err != nil {
			w.logger.Error("failed to release claimed notification",
				slog.Int64("notification_id", claimed[i].ID),
				slog.String("error", err.Error()))
		}
	}
}

// sleepContext pauses for d unless the context ends first, in which case it
// returns the context's error.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
