package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownError is the message used when a failure carries no text at all.
const UnknownError = "Unknown error"

// Error is a failed send. Error() returns Message alone because it is what
// gets stored as the appointment's emailError.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return UnknownError
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ResponseErrorMessage resolves the message for a non-success response: the
// body's top-level "message" string when present, else a generic message
// with the status code.
func ResponseErrorMessage(provider string, status int, body []byte) string {
	var parsed struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg, ok := parsed.Message.(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return fmt.Sprintf("%s request failed with status %d", provider, status)
}

func transportError(provider string, err error) *Error {
	return &Error{Provider: provider, Message: err.Error(), Err: err}
}
