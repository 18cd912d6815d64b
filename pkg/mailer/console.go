package mailer

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of delivering them. Default provider
// for development.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender constructs a ConsoleSender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message and always succeeds.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
