package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer is a fallback Mailer for local development. It logs the message
// instead of delivering it, and always reports success.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer that writes to the given logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg *Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		names = append(names, att.Filename)
	}
	m.logger.Info("mail (log only, not delivered)",
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.TextBody)),
		zap.Int("html_bytes", len(msg.HTMLBody)),
		zap.Strings("attachments", names),
	)
	return nil
}
