package mailer

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of sending them. For development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "=== EMAIL WOULD BE SENT ===",
		"from", msg.From.String(),
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
		"attachments", len(msg.Attachments),
	)
	return nil
}

func (s *LogSender) Ping(context.Context) error {
	return nil
}
