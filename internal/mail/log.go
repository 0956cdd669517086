package mail

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// LogSender writes messages to the log instead of delivering them. It is used
// when SMTP is disabled.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("to", strings.Join(msg.To, ",")).
		Str("subject", msg.Subject).
		Msg("mail not sent, smtp disabled")
	return nil
}
