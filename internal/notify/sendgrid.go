package notify

import (
	"context"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/tutoring-booking/internal/appointments"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

const providerSendGrid = "sendgrid"

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey     string
	TemplateID string
	Recipient  string
	FromEmail  string
	FromName   string
	// Host overrides the API host, for tests.
	Host string
}

// SendGridSender sends the booking notification through a SendGrid dynamic template.
type SendGridSender struct {
	client     *sendgrid.Client
	templateID string
	recipient  string
	fromEmail  string
	fromName   string
	logger     *logging.Logger
	now        func() time.Time
}

// NewSendGridSender creates a new SendGrid sender, or nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultSenderName
	}
	if cfg.FromEmail == "" {
		// SendGrid rejects mail without a from address.
		cfg.FromEmail = cfg.Recipient
	}

	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		request := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		request.Method = "POST"
		client = &sendgrid.Client{Request: request}
	}

	return &SendGridSender{
		client:     client,
		templateID: cfg.TemplateID,
		recipient:  cfg.Recipient,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		logger:     logger.Component("notify.sendgrid"),
		now:        time.Now,
	}
}

// Send makes one API call. Any failure is returned as *Error.
func (s *SendGridSender) Send(ctx context.Context, sub appointments.Submission) error {
	if s.client == nil {
		return &Error{Provider: providerSendGrid, Message: "sendgrid client not configured"}
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.SetTemplateID(s.templateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", s.recipient))
	for key, value := range BuildTemplateParams(sub, s.now()).asMap() {
		p.SetDynamicTemplateData(key, value)
	}
	message.AddPersonalizations(p)

	if sub.Attachment != nil {
		att := mail.NewAttachment()
		att.SetFilename(sub.Attachment.Name)
		att.SetContent(sub.Attachment.Content)
		att.SetDisposition("attachment")
		if sub.Attachment.Type != "" {
			att.SetType(sub.Attachment.Type)
		}
		message.AddAttachment(att)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err)
		return transportError(providerSendGrid, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		msg := ResponseErrorMessage(providerSendGrid, response.StatusCode, []byte(response.Body))
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "message", msg)
		return &Error{Provider: providerSendGrid, StatusCode: response.StatusCode, Message: msg}
	}

	s.logger.Info("appointment email sent via sendgrid", "status", response.StatusCode)
	return nil
}
