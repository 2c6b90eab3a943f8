package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type EmailConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          string
}

type EmailNotifier struct {
	client mailSender
	from   *mail.Email
	to     *mail.Email
}

func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing email API key")
	}

	return newEmailNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg)
}

func newEmailNotifier(client mailSender, cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.FromAddress == "" {
		return nil, errors.New("missing 'from' address")
	}
	if cfg.To == "" {
		return nil, errors.New("missing 'to' address")
	}

	return &EmailNotifier{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
		to:     mail.NewEmail("", cfg.To),
	}, nil
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s %s", n.Title(), n.TimerName)
	plain := n.Message()
	if n.Category != "" {
		plain = fmt.Sprintf("%s (category: %s)", plain, n.Category)
	}
	htmlBody := "<p>" + html.EscapeString(plain) + "</p>"

	email := mail.NewSingleEmail(e.from, subject, e.to, plain, htmlBody)
	response, err := e.client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	return nil
}
