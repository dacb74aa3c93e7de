// Package middleware provides HTTP middleware and response helpers for the API.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/campus-portal/companion/internal/remote"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Common error codes
const (
	ErrNotFound         = "not_found"
	ErrBadRequest       = "bad_request"
	ErrConflict         = "conflict"
	ErrInternalError    = "internal_error"
	ErrValidation       = "validation_error"
	ErrInFlight         = "in_flight"
	ErrGone             = "gone"
	ErrNetwork          = "network_error"
	ErrRemote           = "remote_error"
	ErrSubmitInProgress = "submit_in_progress"
)

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}

// WriteErrorWithDetails writes a JSON error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	WriteJSON(w, status, ErrorResponse{Error: errCode, Message: message, Details: details})
}

// WriteRemoteError maps a portal failure onto a response, passing the
// portal's message through unchanged.
func WriteRemoteError(w http.ResponseWriter, err error) {
	re := remote.AsError(err)
	if re == nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
		return
	}

	status, code := http.StatusInternalServerError, ErrRemote
	switch re.Kind {
	case remote.KindNetwork:
		status, code = http.StatusBadGateway, ErrNetwork
	case remote.KindConflict:
		status, code = http.StatusConflict, ErrConflict
	case remote.KindValidation:
		status, code = http.StatusUnprocessableEntity, ErrValidation
	}
	WriteError(w, status, code, re.Message)
}

// ErrorRecovery recovers from panics and returns a 500 error.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %v\n%s", err, debug.Stack())
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
