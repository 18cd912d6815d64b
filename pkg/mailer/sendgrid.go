package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendGridSender constructs a SendGridSender.
func NewSendGridSender(apiKey, fromName, fromEmail string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromEmail),
	}
}

// Send delivers the message to its single recipient.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return nil
	}

	m := sgmail.NewSingleEmailPlainText(s.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Body)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}
