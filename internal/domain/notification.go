package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Channel identifies the delivery transport of a notification record.
type Channel string

// Supported delivery channels. The set is closed: each channel has a
// dedicated sender implementation registered at startup.
const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// NotificationStatus represents the delivery state of a notification record.
type NotificationStatus string

// Delivery state machine: pending → sending → {sent | pending(retry) | failed}.
// Sent and failed are terminal.
const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSending NotificationStatus = "sending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification-specific validation errors
var (
	ErrNotificationExternalIDEmpty = errors.New("notification external ID cannot be empty")
	ErrNotificationRecipientEmpty  = errors.New("notification recipient cannot be empty")
	ErrNotificationSubjectEmpty    = errors.New("notification subject cannot be empty")
	ErrNotificationBodyEmpty       = errors.New("notification body cannot be empty")
	ErrNotificationRetriesNegative = errors.New("notification retries cannot be negative")
	ErrNotificationSentAtMismatch  = errors.New("notification sent_at must be set exactly when status is sent")
)

// Notification is one queued delivery: a rendered message bound to a single
// recipient and channel at creation time, never re-targeted afterwards. Only
// the worker mutates it (status, retries, sent_at), and records are kept as
// an audit trail rather than deleted after delivery.
type Notification struct {
	ID         int64              `json:"-"`
	ExternalID uuid.UUID          `json:"id"`
	Recipient  string             `json:"recipient"`
	TaskID     *int64             `json:"task_id,omitempty"`
	Channel    Channel            `json:"channel"`
	Subject    string             `json:"subject"`
	Body       string             `json:"body"`
	RichBody   *string            `json:"rich_body,omitempty"`
	Status     NotificationStatus `json:"status"`
	Retries    int                `json:"retries"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
}

// NewNotification creates a pending notification record for the given
// recipient and channel. RichBody is optional and only meaningful for
// channels with a rich-text representation (email).
// Returns an error if validation fails.
func NewNotification(
	recipient string,
	taskID *int64,
	channel Channel,
	subject, body string,
	richBody *string,
) (*Notification, error) {
	now := time.Now().UTC()
	notification := &Notification{
		ExternalID: uuid.New(),
		Recipient:  recipient,
		TaskID:     taskID,
		Channel:    channel,
		Subject:    subject,
		Body:       body,
		RichBody:   richBody,
		Status:     NotificationStatusPending,
		Retries:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := notification.Validate(); err != nil {
		return nil, err
	}

	return notification, nil
}

// Validate checks if the Notification has valid data, including the
// invariant that sent_at is populated exactly when the status is sent.
// Returns an error if any field fails validation.
func (n *Notification) Validate() error {
	if n.ExternalID == uuid.Nil {
		return ErrNotificationExternalIDEmpty
	}

	if n.Recipient == "" {
		return ErrNotificationRecipientEmpty
	}

	if !n.Channel.IsValid() {
		return ErrInvalidChannel
	}

	if n.Subject == "" {
		return ErrNotificationSubjectEmpty
	}

	if n.Body == "" {
		return ErrNotificationBodyEmpty
	}

	if !n.Status.IsValid() {
		return ErrInvalidNotificationStatus
	}

	if n.Retries < 0 {
		return ErrNotificationRetriesNegative
	}

	if (n.Status == NotificationStatusSent) != (n.SentAt != nil) {
		return ErrNotificationSentAtMismatch
	}

	return nil
}

// IsValid reports whether the channel is a supported transport.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status is part of the delivery state machine.
func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusSending,
		NotificationStatusSent, NotificationStatusFailed:
		return true
	default:
		return false
	}
}
