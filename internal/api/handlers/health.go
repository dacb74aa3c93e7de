// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/catalog"
	"github.com/campus-portal/companion/internal/session"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/storage/models"
	"github.com/campus-portal/companion/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status, code := "healthy", http.StatusOK
		if !dbConnected {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, code, HealthResponse{Status: status, DBConnected: dbConnected})
	}
}

// StatusResponse represents the companion status response.
type StatusResponse struct {
	EventsCount      int              `json:"events_count"`
	TrackedEvents    int              `json:"tracked_events"`
	LiveViews        int              `json:"live_views"`
	OpenForms        int              `json:"open_forms"`
	WebSocketClients int              `json:"websocket_clients"`
	Sources          []models.SyncRun `json:"sources"`
	NextSyncAt       *time.Time       `json:"next_sync_at,omitempty"`
}

// StatusDeps are the components Status reports on. Any may be nil.
type StatusDeps struct {
	Events    *storage.EventRepository
	SyncRuns  *storage.SyncRunRepository
	Scheduler *catalog.Scheduler
	Views     *session.Views
	Forms     *session.Forms
	Hub       *websocket.Hub
	Tracked   func() int
}

// Status returns a handler that summarises the companion's state.
func Status(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := StatusResponse{Sources: []models.SyncRun{}}

		if deps.Events != nil {
			n, err := deps.Events.Count(ctx)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count events")
				return
			}
			resp.EventsCount = n
		}
		if deps.SyncRuns != nil {
			if runs, err := deps.SyncRuns.Latest(ctx); err == nil && runs != nil {
				resp.Sources = runs
			}
		}
		if deps.Scheduler != nil {
			resp.NextSyncAt = deps.Scheduler.NextSync()
		}
		if deps.Views != nil {
			resp.LiveViews = deps.Views.Len()
		}
		if deps.Forms != nil {
			resp.OpenForms = deps.Forms.Len()
		}
		if deps.Hub != nil {
			resp.WebSocketClients = deps.Hub.ClientCount()
		}
		if deps.Tracked != nil {
			resp.TrackedEvents = deps.Tracked()
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
