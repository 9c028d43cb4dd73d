package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/tutoring-booking/internal/observability/metrics"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

var appointmentsTracer = otel.Tracer("tutoring.internal.appointments")

// UnknownFailureMessage is stored as emailError when a send fails without a
// descriptive message.
const UnknownFailureMessage = "Unknown error"

// Notifier emails the tutoring team about a stored submission. One call is
// one attempt; implementations do not retry.
type Notifier interface {
	Send(ctx context.Context, sub Submission) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sub Submission) error

func (f NotifierFunc) Send(ctx context.Context, sub Submission) error { return f(ctx, sub) }

// ServiceConfig tunes the submission pipeline.
type ServiceConfig struct {
	// Provider labels email metrics, e.g. "brevo".
	Provider string
	// NotifyTimeout bounds the send call. Zero means no extra deadline.
	NotifyTimeout time.Duration
	// CompensateTimeout bounds status writes made after the send, which run
	// even if the request context is already cancelled.
	CompensateTimeout time.Duration
}

// Service runs validate, persist, notify and the follow-up status write.
type Service struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	cfg      ServiceConfig
}

// NewService constructs the submission pipeline. metrics may be nil.
func NewService(store Store, notifier Notifier, cfg ServiceConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if notifier == nil {
		panic("appointments: notifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Provider == "" {
		cfg.Provider = "email"
	}
	if cfg.CompensateTimeout <= 0 {
		cfg.CompensateTimeout = 5 * time.Second
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.Component("appointments"),
		metrics:  m,
		cfg:      cfg,
	}
}

// Submit validates payload, stores it as pending and emails the team.
//
// Validation problems come back as *ValidationError before any I/O. A failed
// insert returns an error wrapping ErrStorage. A failed send marks the record
// email_failed and returns an error wrapping ErrNotification and the send
// error itself; the record is kept.
func (s *Service) Submit(ctx context.Context, payload map[string]any) (*SubmitResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.submit")
	defer span.End()

	sub, err := ParseSubmission(payload)
	if err != nil {
		s.metrics.ObserveSubmission(serviceLabel(payload), metrics.OutcomeInvalid)
		span.SetStatus(codes.Error, "invalid submission")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tutoring.service", sub.Service),
		attribute.Bool("tutoring.has_attachment", sub.Attachment != nil),
	)

	id, err := s.store.Insert(ctx, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.metrics.ObserveSubmission(sub.Service, metrics.OutcomeStorageFailure)
		s.logger.Error("failed to store appointment", "error", err, "service", sub.Service)
		return nil, err
	}
	span.SetAttributes(attribute.String("tutoring.appointment_id", id))

	if sendErr := s.send(ctx, sub); sendErr != nil {
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, "notification failed")
		s.metrics.ObserveSubmission(sub.Service, metrics.OutcomeEmailFailed)

		message := FailureMessage(sendErr)
		s.logger.Error("failed to send appointment email", "error", sendErr, "appointment_id", id, "provider", s.cfg.Provider)

		cctx, cancel := s.compensationContext(ctx)
		defer cancel()
		if err := s.store.MarkEmailFailed(cctx, id, message); err != nil {
			s.metrics.ObserveStatusUpdateFailure(string(StatusEmailFailed))
			s.logger.Error("failed to mark appointment email_failed", "error", err, "appointment_id", id, "email_error", message)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotification, sendErr)
	}

	cctx, cancel := s.compensationContext(ctx)
	defer cancel()
	if err := s.store.MarkNotified(cctx, id); err != nil {
		// The email went out; the record stays pending and is left for follow-up.
		s.metrics.ObserveStatusUpdateFailure(string(StatusNotified))
		s.logger.Error("failed to mark appointment notified", "error", err, "appointment_id", id)
	}

	s.metrics.ObserveSubmission(sub.Service, metrics.OutcomeNotified)
	s.logger.Info("appointment submitted", "appointment_id", id, "service", sub.Service)
	return &SubmitResult{ID: id}, nil
}

func (s *Service) send(ctx context.Context, sub Submission) error {
	if s.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()
	}
	start := time.Now()
	err := s.notifier.Send(ctx, sub)
	s.metrics.ObserveEmail(s.cfg.Provider, err == nil, time.Since(start).Seconds())
	return err
}

func (s *Service) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensateTimeout)
}

// FailureMessage is the text recorded as emailError for a failed send.
func FailureMessage(err error) string {
	if err == nil {
		return UnknownFailureMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return UnknownFailureMessage
}

func serviceLabel(payload map[string]any) string {
	switch v, _ := payload["service"].(string); strings.TrimSpace(v) {
	case ServiceOnlineTutoring, ServiceAssignmentHelp:
		return strings.TrimSpace(v)
	}
	return ""
}
