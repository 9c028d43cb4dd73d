package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

// DefaultMaxBodyBytes caps the booking payload, attachment included.
const DefaultMaxBodyBytes int64 = 10 << 20

// Submitter is the pipeline the booking endpoint drives.
type Submitter interface {
	Submit(ctx context.Context, payload map[string]any) (*SubmitResult, error)
}

// Handler handles HTTP requests for appointments.
type Handler struct {
	submitter    Submitter
	lister       Lister
	logger       *logging.Logger
	maxBodyBytes int64
}

// NewHandler creates an appointments handler. lister may be nil when the
// operator listing is not mounted.
func NewHandler(submitter Submitter, lister Lister, maxBodyBytes int64, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		submitter:    submitter,
		lister:       lister,
		logger:       logger.Component("appointments.http"),
		maxBodyBytes: maxBodyBytes,
	}
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

var errTrailingData = errors.New("unexpected data after JSON object")

// decodeObject reads exactly one JSON object from body.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errTrailingData
		}
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// Create handles POST /api/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	payload, err := decodeObject(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Invalid request payload",
			Details: map[string][]string{"body": {"Request body must be a JSON object"}},
		})
		return
	}

	result, err := h.submitter.Submit(r.Context(), payload)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Invalid request payload",
				Details: verr.Details(),
			})
			return
		}
		h.logger.Error("appointment submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{ID: result.ID, Status: "ok"})
}

// ListAppointmentsResponse is the response for the operator listing.
type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
	Limit        int           `json:"limit"`
}

// List handles GET /admin/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
		return
	}

	filter := ListFilter{}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Invalid request payload",
				Details: map[string][]string{"limit": {"Limit must be a positive integer"}},
			})
			return
		}
		filter.Limit = limit
	}
	if status := Status(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Invalid request payload",
				Details: map[string][]string{"status": {"Status must be pending, notified or email_failed"}},
			})
			return
		}
		filter.Status = status
	}

	items, err := h.lister.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "status", filter.Status)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	redacted := make([]Appointment, 0, len(items))
	for _, item := range items {
		redacted = append(redacted, item.Redacted())
	}
	writeJSON(w, http.StatusOK, ListAppointmentsResponse{
		Appointments: redacted,
		Count:        len(redacted),
		Limit:        filter.normalizedLimit(),
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
