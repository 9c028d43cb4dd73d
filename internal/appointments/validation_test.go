package appointments

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() map[string]any {
	return map[string]any{
		"name":        "Ada Lovelace",
		"email":       "ada@example.com",
		"service":     "online tutoring",
		"instantHelp": "no",
		"subject":     "Mathematics",
		"topic":       "Difference engines",
		"date":        "2026-03-14",
		"time":        "15:30",
		"timezone":    "Europe/London",
	}
}

func issuesOf(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr
}

func TestParseSubmission_Valid(t *testing.T) {
	sub, err := ParseSubmission(validPayload())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", sub.Name)
	assert.Equal(t, ServiceOnlineTutoring, sub.Service)
	assert.Equal(t, "Europe/London", sub.Timezone)
	assert.Nil(t, sub.Attachment)
}

func TestParseSubmission_AssignmentHelpSkipsScheduling(t *testing.T) {
	payload := validPayload()
	payload["service"] = "assignment help"
	delete(payload, "date")
	delete(payload, "time")
	delete(payload, "timezone")

	sub, err := ParseSubmission(payload)
	require.NoError(t, err)
	assert.Equal(t, ServiceAssignmentHelp, sub.Service)
	assert.Empty(t, sub.Date)
}

func TestParseSubmission_OnlineTutoringReportsSchedulingOnce(t *testing.T) {
	cases := map[string][]string{
		"missing date":     {"date"},
		"missing time":     {"time"},
		"missing timezone": {"timezone"},
		"missing all":      {"date", "time", "timezone"},
		"missing two":      {"time", "timezone"},
	}
	for name, missing := range cases {
		t.Run(name, func(t *testing.T) {
			payload := validPayload()
			for _, key := range missing {
				delete(payload, key)
			}

			_, err := ParseSubmission(payload)
			verr := issuesOf(t, err)
			require.Len(t, verr.Issues, 1)
			assert.Equal(t, "scheduling", verr.Issues[0].Field)
			assert.Equal(t, "Date, time, and timezone are required for online tutoring", verr.Issues[0].Message)
		})
	}
}

func TestParseSubmission_BlankSchedulingCountsAsMissing(t *testing.T) {
	payload := validPayload()
	payload["time"] = "   "

	_, err := ParseSubmission(payload)
	verr := issuesOf(t, err)
	assert.Equal(t, map[string][]string{
		"scheduling": {"Date, time, and timezone are required for online tutoring"},
	}, verr.Details())
}

func TestParseSubmission_ReportsEveryField(t *testing.T) {
	_, err := ParseSubmission(map[string]any{})
	verr := issuesOf(t, err)

	details := verr.Details()
	for _, field := range []string{"name", "email", "service", "instantHelp", "subject", "topic"} {
		assert.Contains(t, details, field)
	}
	assert.NotContains(t, details, "scheduling")
}

func TestParseSubmission_FieldRules(t *testing.T) {
	cases := []struct {
		name    string
		field   string
		value   any
		message string
	}{
		{"bad email", "email", "not-an-email", "Please provide a valid email address"},
		{"unknown service", "service", "homework", "Service must be 'online tutoring' or 'assignment help'"},
		{"instant help maybe", "instantHelp", "maybe", "Instant help must be 'yes' or 'no'"},
		{"instant help capitalised", "instantHelp", "Yes", "Instant help must be 'yes' or 'no'"},
		{"blank name", "name", "  ", "Name is required"},
		{"numeric subject", "subject", 42.0, "Expected a string"},
		{"boolean topic", "topic", true, "Expected a string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			payload[tc.field] = tc.value

			_, err := ParseSubmission(payload)
			verr := issuesOf(t, err)
			assert.Equal(t, []string{tc.message}, verr.Details()[tc.field])
		})
	}
}

func TestParseSubmission_TrimsButKeepsNotes(t *testing.T) {
	payload := validPayload()
	payload["name"] = "  Ada Lovelace \n"
	payload["notes"] = "  bring the notebook  "

	sub, err := ParseSubmission(payload)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", sub.Name)
	assert.Equal(t, "  bring the notebook  ", sub.Notes)
}

func TestParseSubmission_Attachment(t *testing.T) {
	payload := validPayload()
	payload["attachment"] = map[string]any{
		"name":    "worksheet.pdf",
		"content": "JVBERi0xLjQK",
		"type":    "application/pdf",
	}

	sub, err := ParseSubmission(payload)
	require.NoError(t, err)
	require.NotNil(t, sub.Attachment)
	assert.Equal(t, Attachment{Name: "worksheet.pdf", Content: "JVBERi0xLjQK", Type: "application/pdf"}, *sub.Attachment)
}

func TestParseSubmission_AttachmentRules(t *testing.T) {
	payload := validPayload()
	payload["attachment"] = map[string]any{"name": "worksheet.pdf"}

	_, err := ParseSubmission(payload)
	verr := issuesOf(t, err)
	assert.Equal(t, []string{"Attachment content is required"}, verr.Details()["attachment.content"])

	payload["attachment"] = "worksheet.pdf"
	_, err = ParseSubmission(payload)
	verr = issuesOf(t, err)
	assert.Equal(t, []string{"Attachment must be an object"}, verr.Details()["attachment"])
}

func TestParseSubmission_NullAttachmentIsAbsent(t *testing.T) {
	payload := validPayload()
	payload["attachment"] = nil

	sub, err := ParseSubmission(payload)
	require.NoError(t, err)
	assert.Nil(t, sub.Attachment)
}

func TestParseSubmission_Deterministic(t *testing.T) {
	good := validPayload()
	first, err1 := ParseSubmission(good)
	second, err2 := ParseSubmission(good)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)

	bad := map[string]any{"service": "online tutoring", "email": "nope"}
	_, errA := ParseSubmission(bad)
	_, errB := ParseSubmission(bad)
	assert.Equal(t, issuesOf(t, errA).Issues, issuesOf(t, errB).Issues)
}
