// Package email sends transactional mail through SendGrid, or writes it to
// the log in development.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"qaforum/internal/config"
	"qaforum/internal/observability"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is one outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender delivers messages synchronously so callers can report failures.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by EMAIL_PROVIDER.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFrom), nil
	case "", "console":
		return NewConsoleSender(slog.Default()), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.EmailProvider)
	}
}

// SendGridSender posts to the SendGrid v3 mail API.
type SendGridSender struct {
	key  string
	host string
	from *sgmail.Email
}

var _ Sender = (*SendGridSender)(nil)

func NewSendGridSender(key, fromName, fromAddress string) *SendGridSender {
	return &SendGridSender{
		key:  key,
		host: sendgridHost,
		from: sgmail.NewEmail(fromName, fromAddress),
	}
}

func (s *SendGridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

// Send implements Sender.
func (s *SendGridSender) Send(_ context.Context, msg Message) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		observability.EmailDeliveryFailures.WithLabelValues("sendgrid").Inc()
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		observability.EmailDeliveryFailures.WithLabelValues("sendgrid").Inc()
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of sending them and keeps a copy of
// each, which tests read back through Sent.
type ConsoleSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
	// Fail, when set, is returned from every Send.
	Fail error
}

var _ Sender = (*ConsoleSender)(nil)

func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSender{logger: logger}
}

// Send implements Sender.
func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		observability.EmailDeliveryFailures.WithLabelValues("console").Inc()
		return s.Fail
	}
	s.sent = append(s.sent, msg)
	s.logger.InfoContext(ctx, "email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

// Sent returns a copy of every message accepted so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
