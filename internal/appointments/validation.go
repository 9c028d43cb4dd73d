package appointments

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// schedulingField is the virtual field that carries the combined
	// date/time/timezone rule for online tutoring.
	schedulingField = "scheduling"
	schedulingTag   = "scheduling"

	schedulingMessage = "Date, time, and timezone are required for online tutoring"
)

// submissionInput mirrors Submission with the rules the booking form enforces.
type submissionInput struct {
	Name        string           `json:"name" validate:"required"`
	Email       string           `json:"email" validate:"required,email"`
	Service     string           `json:"service" validate:"required,oneof='online tutoring' 'assignment help'"`
	InstantHelp string           `json:"instantHelp" validate:"required,oneof=yes no"`
	Subject     string           `json:"subject" validate:"required"`
	Topic       string           `json:"topic" validate:"required"`
	Date        string           `json:"date"`
	Time        string           `json:"time"`
	Timezone    string           `json:"timezone"`
	Notes       string           `json:"notes"`
	Attachment  *attachmentInput `json:"attachment"`
}

type attachmentInput struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"type"`
}

var fieldMessages = map[string]string{
	"name.required":               "Name is required",
	"email.required":              "Email is required",
	"email.email":                 "Please provide a valid email address",
	"service.required":            "Please select a service",
	"service.oneof":               "Service must be 'online tutoring' or 'assignment help'",
	"instantHelp.required":        "Please tell us whether you need instant help",
	"instantHelp.oneof":           "Instant help must be 'yes' or 'no'",
	"subject.required":            "Subject is required",
	"topic.required":              "Topic is required",
	"attachment.name.required":    "Attachment name is required",
	"attachment.content.required": "Attachment content is required",
	"scheduling.scheduling":       schedulingMessage,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateScheduling, submissionInput{})
	return v
}

// validateScheduling reports a single issue when online tutoring is missing
// any part of the requested slot, however many parts are missing.
func validateScheduling(sl validator.StructLevel) {
	in := sl.Current().Interface().(submissionInput)
	if in.Service != ServiceOnlineTutoring {
		return
	}
	if in.Date == "" || in.Time == "" || in.Timezone == "" {
		sl.ReportError(in.Date, schedulingField, "Scheduling", schedulingTag, "")
	}
}

// ParseSubmission validates an untyped JSON object and returns the normalized
// submission. On failure the error is a *ValidationError listing every issue.
func ParseSubmission(payload map[string]any) (Submission, error) {
	issues := &ValidationError{}
	in := decodeInput(payload, issues)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			issues.add("body", "Invalid request payload")
		}
		for _, fe := range verrs {
			field := fieldPath(fe)
			if fe.Tag() != schedulingTag && issues.has(field) {
				continue
			}
			issues.add(field, issueMessage(field, fe.Tag()))
		}
	}

	if len(issues.Issues) > 0 {
		return Submission{}, issues
	}
	return in.toSubmission(), nil
}

func (in submissionInput) toSubmission() Submission {
	sub := Submission{
		Name:        in.Name,
		Email:       in.Email,
		Service:     in.Service,
		InstantHelp: in.InstantHelp,
		Subject:     in.Subject,
		Topic:       in.Topic,
		Date:        in.Date,
		Time:        in.Time,
		Timezone:    in.Timezone,
		Notes:       in.Notes,
	}
	if in.Attachment != nil {
		sub.Attachment = &Attachment{
			Name:    in.Attachment.Name,
			Content: in.Attachment.Content,
			Type:    in.Attachment.Type,
		}
	}
	return sub
}

// fieldPath drops the root struct name from the validator namespace,
// e.g. "submissionInput.attachment.name" -> "attachment.name".
func fieldPath(fe validator.FieldError) string {
	if fe.Tag() == schedulingTag {
		return schedulingField
	}
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func issueMessage(field, tag string) string {
	if msg, ok := fieldMessages[field+"."+tag]; ok {
		return msg
	}
	return "Invalid value"
}

func decodeInput(payload map[string]any, issues *ValidationError) submissionInput {
	in := submissionInput{
		Name:        stringAt(payload, "name", "name", true, issues),
		Email:       stringAt(payload, "email", "email", true, issues),
		Service:     stringAt(payload, "service", "service", true, issues),
		InstantHelp: stringAt(payload, "instantHelp", "instantHelp", true, issues),
		Subject:     stringAt(payload, "subject", "subject", true, issues),
		Topic:       stringAt(payload, "topic", "topic", true, issues),
		Date:        stringAt(payload, "date", "date", true, issues),
		Time:        stringAt(payload, "time", "time", true, issues),
		Timezone:    stringAt(payload, "timezone", "timezone", true, issues),
		Notes:       stringAt(payload, "notes", "notes", false, issues),
	}

	raw, ok := payload["attachment"]
	if !ok || raw == nil {
		return in
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		issues.add("attachment", "Attachment must be an object")
		return in
	}
	in.Attachment = &attachmentInput{
		Name:    stringAt(obj, "name", "attachment.name", true, issues),
		Content: stringAt(obj, "content", "attachment.content", false, issues),
		Type:    stringAt(obj, "type", "attachment.type", true, issues),
	}
	return in
}

// stringAt reads obj[key] as a string. Absent and null values read as empty;
// any other type is recorded as an issue under path.
func stringAt(obj map[string]any, key, path string, trim bool, issues *ValidationError) string {
	value, ok := obj[key]
	if !ok || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		issues.add(path, "Expected a string")
		return ""
	}
	if trim {
		return strings.TrimSpace(s)
	}
	return s
}
