package appointments

import "time"

// Services offered on the booking form.
const (
	ServiceOnlineTutoring = "online tutoring"
	ServiceAssignmentHelp = "assignment help"
)

// Status is the lifecycle state of a stored appointment.
type Status string

const (
	// StatusPending is set at insert time, before the team is emailed.
	StatusPending Status = "pending"
	// StatusNotified means the notification email was accepted by the provider.
	StatusNotified Status = "notified"
	// StatusEmailFailed means the booking is saved but nobody was emailed about it.
	StatusEmailFailed Status = "email_failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNotified, StatusEmailFailed:
		return true
	}
	return false
}

// Attachment is a single file uploaded with the booking form. Content is an
// opaque encoded payload (base64 from the browser) and is never inspected.
type Attachment struct {
	Name    string `json:"name" bson:"name"`
	Content string `json:"content" bson:"content"`
	Type    string `json:"type,omitempty" bson:"type,omitempty"`
}

// Submission is a validated booking request.
type Submission struct {
	Name        string      `json:"name" bson:"name"`
	Email       string      `json:"email" bson:"email"`
	Service     string      `json:"service" bson:"service"`
	InstantHelp string      `json:"instantHelp" bson:"instantHelp"`
	Subject     string      `json:"subject" bson:"subject"`
	Topic       string      `json:"topic" bson:"topic"`
	Date        string      `json:"date,omitempty" bson:"date,omitempty"`
	Time        string      `json:"time,omitempty" bson:"time,omitempty"`
	Timezone    string      `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Notes       string      `json:"notes,omitempty" bson:"notes,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty" bson:"attachment,omitempty"`
}

// Appointment is the persisted form of a submission.
type Appointment struct {
	Submission `bson:",inline"`
	ID         string     `json:"id" bson:"-"`
	Status     Status     `json:"status" bson:"status"`
	EmailError string     `json:"emailError,omitempty" bson:"emailError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Redacted returns a copy safe to hand to operators: attachment bytes are dropped.
func (a Appointment) Redacted() Appointment {
	if a.Attachment != nil {
		att := *a.Attachment
		att.Content = ""
		a.Attachment = &att
	}
	return a
}

// SubmitResult is returned to the caller after a fully successful submission.
type SubmitResult struct {
	ID string `json:"id"`
}

// ListFilter narrows the operator listing.
type ListFilter struct {
	Status Status
	Limit  int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (f ListFilter) normalizedLimit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	if f.Limit > maxListLimit {
		return maxListLimit
	}
	return f.Limit
}
