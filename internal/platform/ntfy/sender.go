// Package ntfy delivers notification records as push messages over the ntfy
// publish protocol: an HTTP POST of the message text to {server}/{topic},
// with presentation carried in headers.
package ntfy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cairnhq/cairn-api/internal/notify"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
)

// publishTimeout bounds one publish request.
const publishTimeout = 10 * time.Second

// defaultPriority is ntfy's middle priority; task activity is routine, not
// an alert.
const defaultPriority = "3"

// Config holds the push transport settings.
type Config struct {
	// Server is the base URL of the ntfy-compatible endpoint, e.g.
	// https://ntfy.sh or a self-hosted instance.
	Server string
}

// IsConfigured reports whether the transport has a publish endpoint.
func (c Config) IsConfigured() bool {
	return c.Server != ""
}

// Sender delivers push-channel records to an ntfy server.
type Sender struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewSender creates a push sender. If client is nil, a client with the
// standard publish timeout is used. If logger is nil, the process default
// logger is used.
func NewSender(cfg Config, client *http.Client, logger *slog.Logger) *Sender {
	if client == nil {
		client = &http.Client{Timeout: publishTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:    cfg,
		client: client,
		logger: logger.With(slog.String("component", "ntfy_sender")),
	}
}

// Ensure Sender implements notify.Sender.
var _ notify.Sender = (*Sender)(nil)

// Send implements notify.Sender. The delivery destination is the recipient's
// topic. The record's subject becomes the notification title, the body's
// first paragraph becomes the message text, and the task link line becomes
// the click action.
func (s *Sender) Send(ctx context.Context, delivery notify.Delivery) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.cfg.IsConfigured() {
		return notify.Permanentf("push transport is not configured")
	}
	if delivery.Destination == "" {
		return notify.Permanentf("delivery has no destination topic")
	}

	record := delivery.Notification
	message, clickURL := splitBody(record.Body)
	publishURL := strings.TrimRight(s.cfg.Server, "/") + "/" + delivery.Destination

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL,
		strings.NewReader(message))
	if err != nil {
		return notify.Permanentf("failed to build publish request: %w", err)
	}
	req.Header.Set("Title", record.Subject)
	req.Header.Set("Priority", defaultPriority)
	if clickURL != "" {
		req.Header.Set("Click", clickURL)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return notify.Transientf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	log.Info("push notification sent",
		slog.String("topic", delivery.Destination),
		slog.String("title", record.Subject))
	return nil
}

// checkStatus maps the publish response onto the delivery taxonomy. Server
// trouble and rate limiting are worth retrying; any other rejection means
// the request itself is bad and a retry would be rejected the same way.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := responseDetail(resp.Body)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return notify.Transientf("ntfy returned status %d%s", resp.StatusCode, detail)
	}
	return notify.Permanentf("ntfy returned status %d%s", resp.StatusCode, detail)
}

// responseDetail pulls a short error body for the failure message.
func responseDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return ""
	}
	return fmt.Sprintf(": %s", text)
}

// splitBody shapes a record body for the lock screen: the text up to the
// first blank line is the message, and the first link-looking line is the
// click target.
func splitBody(body string) (message, clickURL string) {
	message = body
	if i := strings.Index(body, "\n\n"); i >= 0 {
		message = body[:i]
	}

	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http") {
			return message, line
		}
	}
	return message, ""
}
