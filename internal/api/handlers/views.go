package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/session"
)

// CreateViewRequest mounts a view.
type CreateViewRequest struct {
	Relation  relation.Kind `json:"relation"`
	EntityIDs []string      `json:"entity_ids"`
}

// SeedViewRequest reconciles more entities into a view.
type SeedViewRequest struct {
	EntityIDs []string `json:"entity_ids"`
}

// ViewResponse is the result of mounting or reseeding a view.
type ViewResponse struct {
	ID       string          `json:"id"`
	Relation relation.Kind   `json:"relation"`
	States   map[string]bool `json:"states"`
}

// EntityState is one entity's relation in a view.
type EntityState struct {
	EntityID  string         `json:"entity_id"`
	State     relation.State `json:"state"`
	Displayed bool           `json:"displayed"`
}

// ViewDetailResponse lists every entity of a view.
type ViewDetailResponse struct {
	ID       string        `json:"id"`
	Relation relation.Kind `json:"relation"`
	Entities []EntityState `json:"entities"`
}

// CreateView mounts a view and reconciles its entities with the portal.
func CreateView(views *session.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateViewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if !req.Relation.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "relation must be bookmark or registration")
			return
		}

		view, states, err := views.Open(r.Context(), req.Relation, req.EntityIDs)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, err.Error())
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, ViewResponse{ID: view.ID, Relation: req.Relation, States: states})
	}
}

// GetView returns the current relation state of every entity in a view.
func GetView(views *session.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := lookupView(w, r, views)
		if !ok {
			return
		}

		snapshot := view.Controller.Snapshot()
		resp := ViewDetailResponse{
			ID:       view.ID,
			Relation: view.Controller.Kind(),
			Entities: make([]EntityState, 0, len(snapshot)),
		}
		for _, id := range view.Controller.EntityIDs() {
			state, ok := snapshot[id]
			if !ok {
				continue
			}
			resp.Entities = append(resp.Entities, EntityState{EntityID: id, State: state, Displayed: state.Displayed()})
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}

// SeedView reconciles additional entities into a mounted view.
func SeedView(views *session.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := lookupView(w, r, views)
		if !ok {
			return
		}

		var req SeedViewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		states, err := view.Cache.Seed(r.Context(), req.EntityIDs)
		if errors.Is(err, relation.ErrClosed) {
			middleware.WriteError(w, http.StatusGone, middleware.ErrGone, "View has been closed")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, err.Error())
			return
		}
		middleware.WriteJSON(w, http.StatusOK, ViewResponse{ID: view.ID, Relation: view.Controller.Kind(), States: states})
	}
}

// ToggleEntity flips an entity's relation. The response carries the state
// after the portal has answered; a rolled back change is reported over the
// websocket, not as an HTTP error.
func ToggleEntity(views *session.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := lookupView(w, r, views)
		if !ok {
			return
		}
		entityID := mux.Vars(r)["entity"]

		// A disconnecting browser must not abandon a mutation half way.
		ctx := context.WithoutCancel(r.Context())
		state, err := view.Controller.Toggle(ctx, entityID)
		switch {
		case errors.Is(err, relation.ErrInFlight):
			middleware.WriteErrorWithDetails(w, http.StatusConflict, middleware.ErrInFlight,
				"A change for this entity is already in progress",
				EntityState{EntityID: entityID, State: state, Displayed: state.Displayed()})
			return
		case errors.Is(err, relation.ErrNotSeeded):
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Entity is not part of this view")
			return
		case errors.Is(err, relation.ErrClosed):
			middleware.WriteError(w, http.StatusGone, middleware.ErrGone, "View has been closed")
			return
		case err != nil:
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, err.Error())
			return
		}

		middleware.WriteJSON(w, http.StatusOK, EntityState{EntityID: entityID, State: state, Displayed: state.Displayed()})
	}
}

// DeleteView unmounts a view.
func DeleteView(views *session.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := views.Close(mux.Vars(r)["id"]); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "View not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func lookupView(w http.ResponseWriter, r *http.Request, views *session.Views) (*session.View, bool) {
	view, err := views.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "View not found")
		return nil, false
	}
	return view, true
}
