package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrEmailNotConfigured = errors.New("SendGrid credentials not configured")

// SendGridError carries the non-202 status SendGrid answered with.
type SendGridError struct {
	StatusCode int
	Body       string
}

func (e *SendGridError) Error() string {
	return fmt.Sprintf("SendGrid error: %d", e.StatusCode)
}

// Mailer delivers plain-text messages.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type EmailService struct {
	apiKey    string
	fromEmail string
	send      func(ctx context.Context, msg *mail.SGMailV3) (*rest.Response, error)
}

func NewEmailService(apiKey, fromEmail string) *EmailService {
	s := &EmailService{apiKey: apiKey, fromEmail: fromEmail}
	if apiKey != "" {
		client := sendgrid.NewSendClient(apiKey)
		s.send = client.SendWithContext
	}
	return s
}

func (s *EmailService) Send(ctx context.Context, to, subject, body string) error {
	if s.apiKey == "" || s.fromEmail == "" || s.send == nil {
		return ErrEmailNotConfigured
	}

	from := mail.NewEmail("Finance Assistant", s.fromEmail)
	recipient := mail.NewEmail("", to)
	msg := mail.NewV3MailInit(from, subject, recipient, mail.NewContent("text/plain", body))

	resp, err := s.send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	log := logger.FromContext(ctx)
	if resp.StatusCode != http.StatusAccepted {
		log.Error().
			Int("status", resp.StatusCode).
			Str("to", utils.MaskEmail(to)).
			Str("response", utils.MaskString(resp.Body)).
			Msg("Email delivery failed")
		return &SendGridError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	log.Info().Str("to", utils.MaskEmail(to)).Str("subject", subject).Msg("Email sent")
	return nil
}

// SendAlert mails an alert to the account owner.
func SendAlert(ctx context.Context, m Mailer, to, message string) error {
	if to == "" {
		return ErrEmailNotConfigured
	}
	return m.Send(ctx, to, "🚨 Finance Alert", "Finance Assistant Alert:\n\n"+message)
}
