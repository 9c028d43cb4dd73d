package appointments

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/tutoring-booking/internal/observability/metrics"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

// countingStore wraps the in-memory store and records every call.
type countingStore struct {
	*InMemoryRepository

	mu              sync.Mutex
	inserts         int
	notified        int
	failed          int
	insertErr       error
	markErr         error
	lastFailMessage string
	markCtxErr      error
}

func newCountingStore() *countingStore {
	return &countingStore{InMemoryRepository: NewInMemoryRepository()}
}

func (s *countingStore) Insert(ctx context.Context, sub Submission) (string, error) {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	return s.InMemoryRepository.Insert(ctx, sub)
}

func (s *countingStore) MarkNotified(ctx context.Context, id string) error {
	s.mu.Lock()
	s.notified++
	s.markCtxErr = ctx.Err()
	s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	return s.InMemoryRepository.MarkNotified(ctx, id)
}

func (s *countingStore) MarkEmailFailed(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	s.failed++
	s.lastFailMessage = message
	s.markCtxErr = ctx.Err()
	s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	return s.InMemoryRepository.MarkEmailFailed(ctx, id, message)
}

type countingNotifier struct {
	calls int
	err   error
	fn    func(ctx context.Context) error
}

func (n *countingNotifier) Send(ctx context.Context, _ Submission) error {
	n.calls++
	if n.fn != nil {
		return n.fn(ctx)
	}
	return n.err
}

func newTestService(store Store, notifier Notifier, cfg ServiceConfig) *Service {
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	return NewService(store, notifier, cfg, m, logging.Default())
}

func TestSubmit_Success(t *testing.T) {
	store := newCountingStore()
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier, ServiceConfig{Provider: "stub"})

	result, err := svc.Submit(context.Background(), validPayload())
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)

	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, 1, store.notified)
	assert.Equal(t, 0, store.failed)

	appt, err := store.Get(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, appt.Status)
	assert.Empty(t, appt.EmailError)
	assert.NotNil(t, appt.UpdatedAt)
}

func TestSubmit_ValidationFailureTouchesNothing(t *testing.T) {
	store := newCountingStore()
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier, ServiceConfig{})

	payload := validPayload()
	delete(payload, "timezone")
	payload["email"] = "nope"

	result, err := svc.Submit(context.Background(), payload)
	assert.Nil(t, result)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details(), "email")
	assert.Contains(t, verr.Details(), "scheduling")

	assert.Zero(t, store.inserts)
	assert.Zero(t, store.notified)
	assert.Zero(t, store.failed)
	assert.Zero(t, notifier.calls)
}

func TestSubmit_StorageFailureSkipsNotification(t *testing.T) {
	store := newCountingStore()
	store.insertErr = storageError("insert", errors.New("connection refused"))
	notifier := &countingNotifier{}
	svc := newTestService(store, notifier, ServiceConfig{})

	_, err := svc.Submit(context.Background(), validPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Zero(t, notifier.calls)
	assert.Zero(t, store.failed)
	assert.Zero(t, store.notified)
}

func TestSubmit_StorageFailureLogOmitsSubmitterEmail(t *testing.T) {
	var buf bytes.Buffer
	store := newCountingStore()
	store.insertErr = storageError("insert", errors.New("connection refused"))
	svc := NewService(store, &countingNotifier{}, ServiceConfig{}, nil, logging.NewWithWriter(&buf, "debug"))

	_, err := svc.Submit(context.Background(), validPayload())
	require.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, buf.String(), "failed to store appointment")
	assert.NotContains(t, buf.String(), "ada@example.com")
}

func TestSubmit_NotificationFailureCompensates(t *testing.T) {
	store := newCountingStore()
	sendErr := errors.New("Template not found")
	notifier := &countingNotifier{err: sendErr}
	svc := newTestService(store, notifier, ServiceConfig{Provider: "brevo"})

	result, err := svc.Submit(context.Background(), validPayload())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotification)
	assert.ErrorIs(t, err, sendErr)

	assert.Equal(t, 1, store.failed)
	assert.Zero(t, store.notified)
	assert.Equal(t, "Template not found", store.lastFailMessage)

	items, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, StatusEmailFailed, items[0].Status)
	assert.Equal(t, "Template not found", items[0].EmailError)
}

func TestSubmit_CompensationFailureKeepsOriginalError(t *testing.T) {
	store := newCountingStore()
	store.markErr = storageError("update status", errors.New("write timeout"))
	sendErr := errors.New("brevo request failed with status 503")
	svc := newTestService(store, &countingNotifier{err: sendErr}, ServiceConfig{})

	_, err := svc.Submit(context.Background(), validPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.ErrorIs(t, err, ErrNotification)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, 1, store.failed)
}

func TestSubmit_EmptyFailureMessageFallsBack(t *testing.T) {
	store := newCountingStore()
	svc := newTestService(store, &countingNotifier{err: errors.New("")}, ServiceConfig{})

	_, err := svc.Submit(context.Background(), validPayload())
	require.Error(t, err)
	assert.Equal(t, UnknownFailureMessage, store.lastFailMessage)
}

func TestSubmit_MarkNotifiedFailureStillSucceeds(t *testing.T) {
	store := newCountingStore()
	store.markErr = errors.New("write timeout")
	svc := newTestService(store, &countingNotifier{}, ServiceConfig{})

	result, err := svc.Submit(context.Background(), validPayload())
	require.NoError(t, err)
	require.NotNil(t, result)

	appt, err := store.Get(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestSubmit_NotifyTimeoutBecomesFailure(t *testing.T) {
	store := newCountingStore()
	notifier := &countingNotifier{fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	svc := newTestService(store, notifier, ServiceConfig{NotifyTimeout: 20 * time.Millisecond})

	_, err := svc.Submit(context.Background(), validPayload())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "context deadline exceeded", store.lastFailMessage)
	assert.NoError(t, store.markCtxErr)
}

func TestSubmit_CompensatesAfterCallerCancels(t *testing.T) {
	store := newCountingStore()
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &countingNotifier{fn: func(context.Context) error {
		cancel()
		return errors.New("client went away")
	}}
	svc := newTestService(store, notifier, ServiceConfig{})

	_, err := svc.Submit(ctx, validPayload())
	require.Error(t, err)
	assert.Equal(t, 1, store.failed)
	assert.NoError(t, store.markCtxErr)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, UnknownFailureMessage, FailureMessage(nil))
	assert.Equal(t, UnknownFailureMessage, FailureMessage(errors.New("  ")))
	assert.Equal(t, "Invalid API key", FailureMessage(errors.New("Invalid API key")))
}

func TestNotifierFunc(t *testing.T) {
	called := false
	var n Notifier = NotifierFunc(func(context.Context, Submission) error {
		called = true
		return nil
	})
	require.NoError(t, n.Send(context.Background(), Submission{}))
	assert.True(t, called)
}
