package metrics

import "github.com/prometheus/client_golang/prometheus"

// Submission outcomes recorded by BookingMetrics.
const (
	OutcomeNotified       = "notified"
	OutcomeEmailFailed    = "email_failed"
	OutcomeInvalid        = "invalid"
	OutcomeStorageFailure = "storage_failure"
)

// BookingMetrics exposes counters/histograms for the appointment pipeline.
type BookingMetrics struct {
	submissionsTotal *prometheus.CounterVec
	emailTotal       *prometheus.CounterVec
	emailLatency     *prometheus.HistogramVec
	statusUpdateErrs *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutoring",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Appointment submissions by outcome",
		}, []string{"service", "outcome"}),
		emailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutoring",
			Subsystem: "booking",
			Name:      "notification_emails_total",
			Help:      "Notification emails by provider and result",
		}, []string{"provider", "result"}),
		emailLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tutoring",
			Subsystem: "booking",
			Name:      "notification_email_seconds",
			Help:      "Latency of notification email sends",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		statusUpdateErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutoring",
			Subsystem: "booking",
			Name:      "status_update_failures_total",
			Help:      "Status writes that failed after the initial insert",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.emailTotal, m.emailLatency, m.statusUpdateErrs)
	return m
}

func (m *BookingMetrics) ObserveSubmission(service, outcome string) {
	if m == nil {
		return
	}
	if service == "" {
		service = "unknown"
	}
	m.submissionsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *BookingMetrics) ObserveEmail(provider string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "sent"
	}
	m.emailTotal.WithLabelValues(provider, result).Inc()
	m.emailLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *BookingMetrics) ObserveStatusUpdateFailure(status string) {
	if m == nil {
		return
	}
	m.statusUpdateErrs.WithLabelValues(status).Inc()
}
