package sendemail

import (
	"context"
	"log/slog"
)

// LogMailer is the development backend: it records what would have been sent
// instead of delivering anything.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "log_mailer")}
}

func (m *LogMailer) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]any) error {
	m.logger.InfoContext(ctx, "Email (not delivered, log backend)",
		"to", to, "subject", subject, "template", templateName)

	return nil
}
