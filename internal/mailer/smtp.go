package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/itsm-platform/ticketing-service/internal/config"
)

// ErrInvalidMessage is returned for messages missing a recipient, subject or body.
var ErrInvalidMessage = errors.New("invalid email message")

// Email is a rendered message for one recipient.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered emails.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender builds a sender. Secure selects implicit TLS; otherwise gomail
// upgrades with STARTTLS when the server offers it.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Secure
	return &SMTPSender{from: cfg.From, dialer: d}
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	msg, err := buildMessage(s.from, email)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", email.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, email Email) (*gomail.Message, error) {
	to := strings.TrimSpace(email.To)
	subject := strings.TrimSpace(email.Subject)
	switch {
	case strings.TrimSpace(from) == "":
		return nil, fmt.Errorf("%w: from is required", ErrInvalidMessage)
	case to == "":
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case subject == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	hasText := strings.TrimSpace(email.Text) != ""
	hasHTML := strings.TrimSpace(email.HTML) != ""
	switch {
	case hasText && hasHTML:
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	case hasHTML:
		m.SetBody("text/html", email.HTML)
	case hasText:
		m.SetBody("text/plain", email.Text)
	default:
		return nil, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return m, nil
}

// LogSender records emails instead of sending them. Used when mail is disabled.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, email Email) error {
	s.Logger.Info("email delivery disabled; dropping message",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}
