// Package notify delivers task and invitation emails.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/logs"
)

const senderName = "TaskFlow"

// EmailClient abstracts the provider that actually delivers mail.
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// SendGridClient implements EmailClient over the SendGrid API
type SendGridClient struct {
	apiKey string
	client *sendgrid.Client
}

// NewSendGridClient creates a SendGridClient
func NewSendGridClient(apiKey string) *SendGridClient {
	return &SendGridClient{apiKey: apiKey, client: sendgrid.NewSendClient(apiKey)}
}

// Send sends an email using SendGrid
func (c *SendGridClient) Send(ctx context.Context, from, to, subject, body string) error {
	if c.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if from == "" {
		return fmt.Errorf("from address is empty")
	}
	if to == "" {
		return fmt.Errorf("to address is empty")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(senderName, from),
		subject,
		mail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	logs.Logger.WithFields(logrus.Fields{
		"status":  response.StatusCode,
		"to":      to,
		"subject": subject,
	}).Debug("Mail sent")
	return nil
}

// LogClient writes mail to the log instead of sending it. Used when no provider key is configured.
type LogClient struct{}

// Send logs the email
func (LogClient) Send(_ context.Context, from, to, subject, body string) error {
	logs.Logger.WithFields(logrus.Fields{
		"from":    from,
		"to":      to,
		"subject": subject,
	}).Info("Mail delivery disabled, message dropped")
	logs.Logger.Debug(body)
	return nil
}

// NewClient returns a SendGrid client, or a LogClient when apiKey is empty.
func NewClient(apiKey string) EmailClient {
	if apiKey == "" {
		logs.Logger.Warn("mail.sendgrid_api_key is empty; emails will only be logged")
		return LogClient{}
	}
	return NewSendGridClient(apiKey)
}
