package mail

import (
	"bytes"
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Insecure downgrades TLS from mandatory to opportunistic, for local
	// relays that speak plain SMTP.
	Insecure bool
}

// SMTPMailer delivers mail over SMTP.
type SMTPMailer struct {
	client *gomail.Client
	logger *zap.Logger
}

// NewSMTPMailer builds a mailer for the given SMTP settings. The connection
// is established per send, not here, so a wrong host only surfaces on the
// first delivery.
func NewSMTPMailer(cfg Config, logger *zap.Logger) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if cfg.Insecure {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: client for %s: %w", cfg.Host, err)
	}
	return &SMTPMailer{client: client, logger: logger}, nil
}

// Send delivers the message, blocking until the SMTP exchange completes or
// ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	out := gomail.NewMsg()
	if err := out.From(msg.From); err != nil {
		return fmt.Errorf("mail: invalid sender %q: %w", msg.From, err)
	}
	if err := out.To(msg.To...); err != nil {
		return fmt.Errorf("mail: invalid recipients %v: %w", msg.To, err)
	}
	out.Subject(msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		out.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
		out.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		out.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	default:
		out.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		if err := out.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
			return fmt.Errorf("mail: attach %s: %w", att.Filename, err)
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	m.logger.Info("mail delivered",
		zap.String("subject", msg.Subject),
		zap.Strings("to", msg.To),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
