package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes messages to the log instead of delivering them. Used by
// the "log" driver in development.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSender) SendSMS(_ context.Context, contact string, message string) error {
	s.log.Info().Str("to", contact).Str("message", message).Msg("sms (log driver)")
	return nil
}

func (s *LogSender) SendEmail(_ context.Context, address string, subject string, htmlBody string) error {
	s.log.Info().Str("to", address).Str("subject", subject).Str("body", htmlBody).Msg("email (log driver)")
	return nil
}
