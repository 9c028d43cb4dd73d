package notify

import (
	"strings"
	"time"

	"github.com/wolfman30/tutoring-booking/internal/appointments"
)

// NotProvided fills scheduling parameters the student left out.
const NotProvided = "Not provided"

const submittedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// TemplateParams is the fixed parameter set every provider template renders.
type TemplateParams struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Service     string `json:"service"`
	InstantHelp string `json:"instantHelp"`
	Subject     string `json:"subject"`
	Topic       string `json:"topic"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Timezone    string `json:"timezone"`
	Notes       string `json:"notes"`
	SubmittedAt string `json:"submittedAt"`
}

// BuildTemplateParams renders sub for the notification template. now is the
// send time, not the time the form was submitted.
func BuildTemplateParams(sub appointments.Submission, now time.Time) TemplateParams {
	return TemplateParams{
		Name:        sub.Name,
		Email:       sub.Email,
		Service:     sub.Service,
		InstantHelp: yesNo(sub.InstantHelp),
		Subject:     sub.Subject,
		Topic:       sub.Topic,
		Date:        orNotProvided(sub.Date),
		Time:        orNotProvided(sub.Time),
		Timezone:    orNotProvided(sub.Timezone),
		Notes:       strings.TrimSpace(sub.Notes),
		SubmittedAt: now.UTC().Format(submittedAtLayout),
	}
}

// asMap is the template data in the shape both provider SDKs take.
func (p TemplateParams) asMap() map[string]any {
	return map[string]any{
		"name":        p.Name,
		"email":       p.Email,
		"service":     p.Service,
		"instantHelp": p.InstantHelp,
		"subject":     p.Subject,
		"topic":       p.Topic,
		"date":        p.Date,
		"time":        p.Time,
		"timezone":    p.Timezone,
		"notes":       p.Notes,
		"submittedAt": p.SubmittedAt,
	}
}

func yesNo(v string) string {
	if v == "yes" {
		return "Yes"
	}
	return "No"
}

func orNotProvided(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotProvided
	}
	return v
}
