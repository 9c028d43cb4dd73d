package appointments

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorage marks a failed read or write against the appointment store.
	ErrStorage = errors.New("appointments: storage failure")

	// ErrNotification marks a failed attempt to email the tutoring team.
	ErrNotification = errors.New("appointments: notification failure")

	// ErrAppointmentNotFound is returned when a status update targets an unknown id.
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")
)

// FieldIssue is one violated rule on one field of a submission.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every issue found in a submission.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return "appointments: invalid submission: " + strings.Join(parts, "; ")
}

// Details groups the issues by field path, in the shape returned to clients.
func (e *ValidationError) Details() map[string][]string {
	out := make(map[string][]string, len(e.Issues))
	for _, issue := range e.Issues {
		out[issue.Field] = append(out[issue.Field], issue.Message)
	}
	return out
}

func (e *ValidationError) add(field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: message})
}

func (e *ValidationError) has(field string) bool {
	for _, issue := range e.Issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
