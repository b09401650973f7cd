// Package notify contains the notification delivery pipeline: the enqueuer
// that fans an activity event out into per-recipient, per-channel delivery
// records, the renderer that turns action codes into channel-appropriate
// messages, and the worker that polls the queue and drives each record
// through its delivery state machine. Transports live in
// internal/platform/email and internal/platform/ntfy and plug in through the
// Sender interface.
package notify
