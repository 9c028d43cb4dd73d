package notify

import (
	"context"

	"github.com/wolfman30/tutoring-booking/internal/appointments"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

// StubSender is a no-op sender for local development or when email is disabled.
type StubSender struct {
	logger *logging.Logger
}

// NewStubSender creates a stub sender that logs but doesn't send.
func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger.Component("notify.stub")}
}

// Send logs the booking but doesn't email anyone.
func (s *StubSender) Send(ctx context.Context, sub appointments.Submission) error {
	s.logger.Info("stub sender: would send appointment email",
		"service", sub.Service,
		"subject", sub.Subject,
		"has_attachment", sub.Attachment != nil,
	)
	return nil
}
