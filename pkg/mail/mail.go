// Package mail delivers outgoing mail over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// Message is a plain-text mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	UseTLS   bool
	UseSSL   bool
	Username string
	Password string

	// SuppressSend logs outgoing mail instead of delivering it.
	SuppressSend bool
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers a single message. With SuppressSend set the message
// is logged and dropped.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if s.cfg.SuppressSend {
		logger.Info("mail delivery suppressed",
			"to", msg.To, "subject", msg.Subject)
		logger.Debug("suppressed mail body", "body", msg.Body)
		return nil
	}

	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
	}
	switch {
	case s.cfg.UseSSL:
		opts = append(opts, gomail.WithSSLPort(false))
	case s.cfg.UseTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}

	logger.Debug("mail delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}
