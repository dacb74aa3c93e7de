package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/catalog"
	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/storage/models"
)

// EventResponse is a cached event with its phase at request time.
type EventResponse struct {
	models.Event
	Phase lifecycle.Phase `json:"phase"`
}

// Clock returns the current time. Handlers take it so tests can pin now.
type Clock func() time.Time

func phaseOf(tracker *lifecycle.Tracker, e models.Event, now time.Time) lifecycle.Phase {
	if p, ok := tracker.Phase(e.ID, now); ok {
		return p
	}
	return lifecycle.ResolveIn(e.Window(), now, tracker.Location())
}

// ListEvents returns cached events with their phase. ?phase= filters.
func ListEvents(repo *storage.EventRepository, tracker *lifecycle.Tracker, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := repo.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}

		filter := r.URL.Query().Get("phase")
		now := clock()
		resp := make([]EventResponse, 0, len(events))
		for _, e := range events {
			phase := phaseOf(tracker, e, now)
			if filter != "" && phase.String() != filter {
				continue
			}
			resp = append(resp, EventResponse{Event: e, Phase: phase})
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}

// GetEvent returns one cached event with its phase.
func GetEvent(repo *storage.EventRepository, tracker *lifecycle.Tracker, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		e, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query event")
			return
		}
		if e == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, EventResponse{Event: *e, Phase: phaseOf(tracker, *e, clock())})
	}
}

// TriggerCatalogSync starts an immediate catalog sync.
func TriggerCatalogSync(scheduler *catalog.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !scheduler.TriggerSync() {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "A catalog sync is already running")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sync_started"})
	}
}
