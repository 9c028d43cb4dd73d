package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"

	"github.com/wolfman30/tutoring-booking/internal/appointments"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

const (
	providerBrevo = "brevo"

	// DefaultBrevoBaseURL is the public transactional email API.
	DefaultBrevoBaseURL = "https://api.brevo.com"

	// DefaultSenderName is used when a sender address is configured without a name.
	DefaultSenderName = "Tutoring Desk"
)

// BrevoConfig holds configuration for Brevo.
type BrevoConfig struct {
	APIKey      string
	TemplateID  int
	Recipient   string
	SenderEmail string
	SenderName  string
	BaseURL     string
	HTTPClient  *http.Client
}

// BrevoClient sends the booking notification through a Brevo template.
type BrevoClient struct {
	api        *brevo.APIClient
	templateID int64
	recipient  string
	sender     *brevo.SendSmtpEmailSender
	logger     *logging.Logger
	now        func() time.Time
}

// NewBrevoClient creates a Brevo client. It returns nil without an API key,
// the same way the SendGrid constructor does.
func NewBrevoClient(cfg BrevoConfig, logger *logging.Logger) *BrevoClient {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBrevoBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	apiCfg := brevo.NewConfiguration()
	apiCfg.BasePath = strings.TrimRight(cfg.BaseURL, "/") + "/v3"
	apiCfg.HTTPClient = cfg.HTTPClient
	apiCfg.AddDefaultHeader("api-key", cfg.APIKey)

	var sender *brevo.SendSmtpEmailSender
	if cfg.SenderEmail != "" {
		name := cfg.SenderName
		if name == "" {
			name = DefaultSenderName
		}
		sender = &brevo.SendSmtpEmailSender{Email: cfg.SenderEmail, Name: name}
	}

	return &BrevoClient{
		api:        brevo.NewAPIClient(apiCfg),
		templateID: int64(cfg.TemplateID),
		recipient:  cfg.Recipient,
		sender:     sender,
		logger:     logger.Component("notify.brevo"),
		now:        time.Now,
	}
}

// Send makes one API call. Any failure is returned as *Error.
func (c *BrevoClient) Send(ctx context.Context, sub appointments.Submission) error {
	var params interface{} = BuildTemplateParams(sub, c.now()).asMap()
	email := brevo.SendSmtpEmail{
		Sender:     c.sender,
		To:         []brevo.SendSmtpEmailTo{{Email: c.recipient}},
		TemplateId: c.templateID,
		Params:     &params,
	}
	if sub.Attachment != nil {
		email.Attachment = []brevo.SendSmtpEmailAttachment{{Name: sub.Attachment.Name, Content: sub.Attachment.Content}}
	}

	_, resp, err := c.api.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if err != nil {
		var apiErr brevo.GenericSwaggerError
		if errors.As(err, &apiErr) && resp != nil {
			msg := ResponseErrorMessage(providerBrevo, resp.StatusCode, apiErr.Body())
			c.logger.Error("brevo returned error status", "status", resp.StatusCode, "message", msg)
			return &Error{Provider: providerBrevo, StatusCode: resp.StatusCode, Message: msg, Err: err}
		}
		c.logger.Error("brevo send failed", "error", err)
		return transportError(providerBrevo, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ResponseErrorMessage(providerBrevo, resp.StatusCode, nil)
		c.logger.Error("brevo returned error status", "status", resp.StatusCode, "message", msg)
		return &Error{Provider: providerBrevo, StatusCode: resp.StatusCode, Message: msg}
	}

	c.logger.Info("appointment email sent via brevo", "status", resp.StatusCode, "template_id", c.templateID)
	return nil
}
