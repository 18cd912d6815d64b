// Package mailer provides the message-transport boundary for notifications.
// The dispatcher only depends on Sender; providers are selected by config.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/pkg/config"
)

// Message is a single addressed text message.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message and reports success or failure.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the Sender named by cfg.Provider.
func New(cfg config.NotifyConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg.SMTP, cfg.FromEmail), nil
	case "sendgrid":
		return NewSendGridSender(cfg.SendGridKey, cfg.FromName, cfg.FromEmail), nil
	case "console", "":
		return NewConsoleSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
