package notify

import (
	"context"
	"fmt"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// Delivery is one attempt handed to a sender: the queued record plus the
// destination resolved from the recipient's preferences at dispatch time.
// For the email channel the destination is the recipient's address; for the
// push channel it is their topic.
type Delivery struct {
	Notification *domain.Notification
	Destination  string
}

// Sender delivers one rendered message over one transport. Implementations
// report failures as *DeliveryError so the worker can log the classification;
// any other error is treated as transient.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}

// Senders maps each delivery channel to its transport. The channel set is
// closed, so the registry is a plain map validated once at startup rather
// than an open registration mechanism.
type Senders map[domain.Channel]Sender

// Validate checks that every supported channel has a sender, so a
// misconfigured deployment fails at startup instead of failing every queued
// record at dispatch time.
func (s Senders) Validate() error {
	for _, channel := range []domain.Channel{domain.ChannelEmail, domain.ChannelPush} {
		if s[channel] == nil {
			return fmt.Errorf("no sender registered for channel %q", channel)
		}
	}
	return nil
}
