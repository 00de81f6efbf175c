// ABOUTME: JSON response envelopes and fault-kind to HTTP status mapping
// ABOUTME: Every API response is a {success, data, error, message} envelope

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/store"
)

// envelope is the uniform API response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// respondError converts a typed error into an envelope with the matching
// HTTP status code.
func respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   fault.KindOf(err).String(),
		Message: err.Error(),
	})
}

func statusForError(err error) int {
	// Duplicate registration is a conflict, not a plain bad request.
	if errors.Is(err, store.ErrDuplicateAccount) {
		return http.StatusConflict
	}

	switch fault.KindOf(err) {
	case fault.InvalidArgument:
		return http.StatusBadRequest
	case fault.Unauthorized:
		return http.StatusUnauthorized
	case fault.Forbidden:
		return http.StatusForbidden
	case fault.NotFound:
		return http.StatusNotFound
	case fault.NotReady:
		return http.StatusServiceUnavailable
	case fault.DriverFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
