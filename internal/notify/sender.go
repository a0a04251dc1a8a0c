package notify

import (
	"context"
	"log/slog"
)

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, token, message string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, token, message string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, token, message string) error {
	return f(ctx, token, message)
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message against a shortened token.
func (s *LogSender) Send(_ context.Context, token, message string) error {
	s.logger.Info("push notification", "device", redactToken(token), "message", message)
	return nil
}

// redactToken keeps enough of a device token to correlate log lines.
func redactToken(token string) string {
	const keep = 8
	if len(token) <= keep {
		return token
	}
	return token[:keep] + "..."
}
