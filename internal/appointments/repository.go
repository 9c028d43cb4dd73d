package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists appointments and applies the single status transition each
// record goes through after insert.
type Store interface {
	// Insert writes a new pending record and returns its id.
	Insert(ctx context.Context, sub Submission) (string, error)
	// MarkNotified moves the record to notified. Repeated calls are harmless.
	MarkNotified(ctx context.Context, id string) error
	// MarkEmailFailed moves the record to email_failed and records why.
	MarkEmailFailed(ctx context.Context, id string, message string) error
}

// Lister is the read side used by the operator listing. It is kept apart
// from Store so the submission pipeline cannot depend on it.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
}

// InMemoryRepository keeps appointments in a map. It backs tests and the
// memory store backend used for local development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
	now   func() time.Time
}

// NewInMemoryRepository creates an empty in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores a pending copy of sub.
func (r *InMemoryRepository) Insert(ctx context.Context, sub Submission) (string, error) {
	appt := &Appointment{
		Submission: cloneSubmission(sub),
		ID:         uuid.NewString(),
		Status:     StatusPending,
		CreatedAt:  r.now(),
	}

	r.mu.Lock()
	r.items[appt.ID] = appt
	r.mu.Unlock()

	return appt.ID, nil
}

// MarkNotified sets the notified status.
func (r *InMemoryRepository) MarkNotified(ctx context.Context, id string) error {
	return r.transition(id, StatusNotified, "")
}

// MarkEmailFailed sets the email_failed status with the provider's message.
func (r *InMemoryRepository) MarkEmailFailed(ctx context.Context, id string, message string) error {
	return r.transition(id, StatusEmailFailed, message)
}

func (r *InMemoryRepository) transition(id string, status Status, emailError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.items[id]
	if !ok {
		return storageError("update status", ErrAppointmentNotFound)
	}
	now := r.now()
	appt.Status = status
	appt.EmailError = emailError
	appt.UpdatedAt = &now
	return nil
}

// Get returns a copy of the stored appointment.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *appt
	cp.Submission = cloneSubmission(appt.Submission)
	return &cp, nil
}

// List returns the newest appointments first.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	out := make([]Appointment, 0, len(r.items))
	for _, appt := range r.items {
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		out = append(out, *appt)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := filter.normalizedLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneSubmission(sub Submission) Submission {
	if sub.Attachment != nil {
		att := *sub.Attachment
		sub.Attachment = &att
	}
	return sub
}
