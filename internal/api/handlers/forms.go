package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/session"
	"github.com/campus-portal/companion/internal/validate"
)

// CreateFormRequest mounts a form.
type CreateFormRequest struct {
	Kind    string `json:"kind"`
	EventID string `json:"event_id"`
}

// FieldInputRequest is one raw input for a field.
type FieldInputRequest struct {
	Value string `json:"value"`
}

// FormResponse describes a mounted form.
type FormResponse struct {
	ID      string                `json:"id"`
	Kind    string                `json:"kind"`
	EventID string                `json:"event_id"`
	Fields  []validate.FieldState `json:"fields"`
}

func formResponse(s *session.FormSession) FormResponse {
	return FormResponse{ID: s.Form.ID, Kind: s.Form.Kind, EventID: s.EventID, Fields: s.Form.Fields()}
}

// CreateForm mounts a feedback or certificate form for an event.
func CreateForm(registry *session.Forms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateFormRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.EventID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "event_id is required")
			return
		}

		s, err := registry.Open(req.Kind, req.EventID)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, formResponse(s))
	}
}

// GetForm returns the state of every field.
func GetForm(registry *session.Forms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, formResponse(s))
	}
}

// UpdateField records raw input. Validation runs once input settles and is
// reported over the websocket.
func UpdateField(registry *session.Forms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}

		var req FieldInputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		name := mux.Vars(r)["name"]
		switch err := s.Form.Input(name, req.Value); {
		case errors.Is(err, validate.ErrUnknownField):
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown field")
			return
		case errors.Is(err, validate.ErrFormClosed):
			middleware.WriteError(w, http.StatusGone, middleware.ErrGone, "Form has been closed")
			return
		case err != nil:
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, err.Error())
			return
		}

		for _, field := range s.Form.Fields() {
			if field.Name == name {
				middleware.WriteJSON(w, http.StatusAccepted, field)
				return
			}
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// SubmitForm validates every field and sends the form to the portal.
func SubmitForm(registry *session.Forms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}

		err := s.Form.Submit(r.Context(), s.Send)
		var invalid validate.Errors
		switch {
		case err == nil:
			registry.Close(s.Form.ID)
			middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
		case errors.As(err, &invalid):
			middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation,
				"Some fields are invalid", invalid)
		case errors.Is(err, validate.ErrSubmitInProgress):
			middleware.WriteError(w, http.StatusConflict, middleware.ErrSubmitInProgress, "Form is already being submitted")
		case errors.Is(err, validate.ErrFormClosed):
			middleware.WriteError(w, http.StatusGone, middleware.ErrGone, "Form has been closed")
		default:
			middleware.WriteRemoteError(w, err)
		}
	}
}

// DeleteForm unmounts a form, cancelling its pending validations.
func DeleteForm(registry *session.Forms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := registry.Close(mux.Vars(r)["id"]); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Form not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func lookupForm(w http.ResponseWriter, r *http.Request, registry *session.Forms) (*session.FormSession, bool) {
	s, err := registry.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Form not found")
		return nil, false
	}
	return s, true
}
