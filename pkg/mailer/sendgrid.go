package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Body    string
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridMailer sends mail through the SendGrid v3 API.
type SendgridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendgrid constructs a SendGrid-backed mailer.
func NewSendgrid(cfg config.MailConfig) *SendgridMailer {
	return &SendgridMailer{
		client:    sendgrid.NewSendClient(cfg.SendgridAPIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send delivers a single message; any non-2xx response is an error.
func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.Body)

	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

// NopMailer drops messages; used in development when no API key is set.
type NopMailer struct{}

// Send implements Mailer.
func (NopMailer) Send(context.Context, Message) error { return nil }
