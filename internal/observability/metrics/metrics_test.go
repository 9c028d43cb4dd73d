package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("scrape failed with status %d", rr.Code)
	}
	return rr.Body.String()
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveSubmission("online tutoring", OutcomeNotified)
	m.ObserveSubmission("online tutoring", OutcomeNotified)
	m.ObserveSubmission("", OutcomeInvalid)
	m.ObserveEmail("brevo", true, 0.2)
	m.ObserveEmail("brevo", false, 0.4)
	m.ObserveStatusUpdateFailure(OutcomeNotified)

	body := scrape(t, reg)
	for _, want := range []string{
		`tutoring_booking_submissions_total{outcome="notified",service="online tutoring"} 2`,
		`tutoring_booking_submissions_total{outcome="invalid",service="unknown"} 1`,
		`tutoring_booking_notification_emails_total{provider="brevo",result="failed"} 1`,
		`tutoring_booking_notification_emails_total{provider="brevo",result="sent"} 1`,
		`tutoring_booking_notification_email_seconds_count{provider="brevo"} 2`,
		`tutoring_booking_status_update_failures_total{status="notified"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	m := NewBookingMetrics(nil)
	defer prometheus.DefaultRegisterer.Unregister(m.submissionsTotal)
	defer prometheus.DefaultRegisterer.Unregister(m.emailTotal)
	defer prometheus.DefaultRegisterer.Unregister(m.emailLatency)
	defer prometheus.DefaultRegisterer.Unregister(m.statusUpdateErrs)
	m.ObserveSubmission("assignment help", OutcomeStorageFailure)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSubmission("assignment help", OutcomeEmailFailed)
	m.ObserveEmail("stub", true, 0.1)
	m.ObserveStatusUpdateFailure(OutcomeEmailFailed)
}
