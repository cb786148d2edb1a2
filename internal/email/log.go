package email

import (
	"context"
	"log/slog"
)

// LogSender writes codes to the log instead of delivering them. It stands in
// for real SMTP when no host is configured, so local sign-up flows stay
// testable end to end: the code you need is right there in the server output.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(ctx context.Context, to, username, code string) error {
	s.logger.Info("verification code issued (smtp disabled, logging instead)",
		"to", to,
		"username", username,
		"code", code,
	)
	return nil
}
