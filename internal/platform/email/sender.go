// Package email delivers notification records over SMTP. Messages are built
// as multipart/alternative MIME documents so mail clients can pick between
// the plain body and the rendered HTML alternative.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/cairnhq/cairn-api/internal/domain"
	"github.com/cairnhq/cairn-api/internal/notify"
	"github.com/cairnhq/cairn-api/internal/platform/logger"
)

// sessionTimeout bounds one SMTP session end to end, dial included. A mail
// server that stalls mid-session would otherwise hold the worker's dispatch
// loop indefinitely.
const sessionTimeout = 30 * time.Second

// implicitTLSPort is the SMTPS port. Connections to it are wrapped in TLS
// before the SMTP dialog starts; every other port speaks plain SMTP and
// upgrades via STARTTLS when the server offers it.
const implicitTLSPort = 465

// Config holds the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// IsConfigured reports whether the transport has enough settings to attempt
// a delivery. Host and sender address are required; credentials are not,
// since a relay on a trusted network may not want any.
func (c Config) IsConfigured() bool {
	return c.Host != "" && c.Sender != ""
}

// addr returns the host:port dial target, defaulting to the submission port.
func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Sender delivers email-channel records over SMTP. Each delivery opens a
// fresh session; the worker dispatches sequentially, so there is no
// connection churn worth pooling for.
type Sender struct {
	cfg    Config
	logger *slog.Logger
}

// NewSender creates an SMTP sender. If logger is nil, the process default
// logger is used.
func NewSender(cfg Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "email_sender")),
	}
}

// Ensure Sender implements notify.Sender.
var _ notify.Sender = (*Sender)(nil)

// Send implements notify.Sender. The delivery destination is the recipient's
// email address.
func (s *Sender) Send(ctx context.Context, delivery notify.Delivery) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.cfg.IsConfigured() {
		return notify.Permanentf("smtp transport is not configured")
	}
	if delivery.Destination == "" {
		return notify.Permanentf("delivery has no destination address")
	}

	msg, err := buildMessage(s.cfg.Sender, delivery.Destination, delivery.Notification)
	if err != nil {
		// A record whose content cannot be encoded will never encode.
		return notify.Permanentf("failed to build mime message: %w", err)
	}

	if err := s.send(ctx, delivery.Destination, msg); err != nil {
		return classify(err)
	}

	log.Info("email sent",
		slog.String("to", delivery.Destination),
		slog.String("subject", delivery.Notification.Subject))
	return nil
}

// send runs one SMTP session: dial, optional TLS upgrade, optional auth,
// envelope, payload, quit.
func (s *Sender) send(ctx context.Context, to string, msg []byte) error {
	dialer := &net.Dialer{Timeout: sessionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.addr())
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(sessionTimeout)); err != nil {
		return fmt.Errorf("failed to set session deadline: %w", err)
	}

	if s.cfg.Port == implicitTLSPort {
		conn = tls.Client(conn, &tls.Config{ServerName: s.cfg.Host})
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if s.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return notify.Permanentf("smtp server does not support authentication")
		}
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.Sender); err != nil {
		return fmt.Errorf("mail from rejected: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command rejected: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	// The server accepted the message when DATA closed; failing the delivery
	// over a broken QUIT would send the recipient a duplicate.
	_ = client.Quit()
	return nil
}

// classify maps an SMTP session error onto the delivery taxonomy: permanent
// 5xx replies will not change on retry, while 4xx replies and anything
// network-shaped are worth another attempt.
func classify(err error) error {
	var deliveryErr *notify.DeliveryError
	if errors.As(err, &deliveryErr) {
		return err
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return notify.Permanent(err)
	}
	return notify.Transient(err)
}

// buildMessage encodes a notification record as a MIME document: a plain
// text part always, plus an HTML alternative when the record carries one.
func buildMessage(from, to string, n *domain.Notification) ([]byte, error) {
	var header mail.Header
	header.SetDate(time.Now())
	header.SetSubject(n.Subject)
	header.SetAddressList("From", []*mail.Address{{Address: from}})
	header.SetAddressList("To", []*mail.Address{{Address: to}})

	var buf bytes.Buffer

	if n.RichBody == nil {
		header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, header)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err := io.WriteString(w, n.Body); err != nil {
			return nil, fmt.Errorf("failed to write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish message: %w", err)
		}
		return buf.Bytes(), nil
	}

	w, err := mail.CreateInlineWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	// Alternatives go least-preferred first; clients render the last part
	// they understand.
	var plainHeader mail.InlineHeader
	plainHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := w.CreatePart(plainHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create plain part: %w", err)
	}
	if _, err := io.WriteString(pw, n.Body); err != nil {
		return nil, fmt.Errorf("failed to write plain part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish plain part: %w", err)
	}

	var htmlHeader mail.InlineHeader
	htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	hw, err := w.CreatePart(htmlHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	if _, err := io.WriteString(hw, *n.RichBody); err != nil {
		return nil, fmt.Errorf("failed to write html part: %w", err)
	}
	if err := hw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish html part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}
