package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrHeaderInjection is returned when a header value contains a line break.
var ErrHeaderInjection = errors.New("header value contains line break")

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger      *slog.Logger
	includeBody bool
}

// NewLogSender creates a LogSender. Bodies carry verification links, so they
// are only logged when includeBody is set.
func NewLogSender(logger *slog.Logger, includeBody bool) *LogSender {
	return &LogSender{
		logger:      logger.With("component", "mailer.log_sender"),
		includeBody: includeBody,
	}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	attrs := []any{"to", msg.To, "subject", msg.Subject, "body_bytes", len(msg.Body)}
	if s.includeBody {
		attrs = append(attrs, "body", msg.Body)
	}
	s.logger.InfoContext(ctx, "email not delivered, logged instead", attrs...)
	return nil
}

// DefaultSMTPTimeout bounds dialing and every read or write on the relay
// connection.
const DefaultSMTPTimeout = 10 * time.Second

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	timeout time.Duration
	send    func(ctx context.Context, msgs ...*mail.Msg) error
}

// NewSMTPSender creates an SMTPSender. STARTTLS is used when the relay offers
// it, and PLAIN authentication is enabled when a username is configured.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(cfg.Timeout)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{
		timeout: cfg.Timeout,
		send:    client.DialAndSendWithContext,
	}, nil
}

// Send delivers msg. The attempt is bounded by the sender timeout even when
// ctx carries no deadline.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// deadlineDialer dials the relay and puts a hard deadline on the connection,
// so a relay that accepts but never answers cannot block a send.
func deadlineDialer(timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// buildMessage converts msg into a go-mail message. Addresses are parsed by
// go-mail; the subject is checked here since it is written as given.
func buildMessage(msg Message) (*mail.Msg, error) {
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, ErrHeaderInjection
	}

	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
