// Package api provides HTTP routing and handlers for the companion API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campus-portal/companion/internal/api/handlers"
	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/catalog"
	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/session"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/websocket"
)

// Deps are the components the router exposes.
type Deps struct {
	DB        *storage.DB
	Hub       *websocket.Hub
	Tracker   *lifecycle.Tracker
	Scheduler *catalog.Scheduler
	Views     *session.Views
	Forms     *session.Forms
	Settings  handlers.SettingsRuntime
	StaticDir string
	Clock     handlers.Clock
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	eventRepo := storage.NewEventRepository(deps.DB)
	syncRunRepo := storage.NewSyncRunRepository(deps.DB)
	settingsRepo := storage.NewSettingsRepository(deps.DB)

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(handlers.StatusDeps{
		Events:    eventRepo,
		SyncRuns:  syncRunRepo,
		Scheduler: deps.Scheduler,
		Views:     deps.Views,
		Forms:     deps.Forms,
		Hub:       deps.Hub,
		Tracked:   deps.Tracker.Len,
	})).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")

	// Event catalog endpoints
	api.HandleFunc("/events", handlers.ListEvents(eventRepo, deps.Tracker, clock)).Methods("GET")
	api.HandleFunc("/events/{id}", handlers.GetEvent(eventRepo, deps.Tracker, clock)).Methods("GET")
	if deps.Scheduler != nil {
		api.HandleFunc("/catalog/sync", handlers.TriggerCatalogSync(deps.Scheduler)).Methods("POST")
	}

	// View endpoints
	api.HandleFunc("/views", handlers.CreateView(deps.Views)).Methods("POST")
	api.HandleFunc("/views/{id}", handlers.GetView(deps.Views)).Methods("GET")
	api.HandleFunc("/views/{id}", handlers.DeleteView(deps.Views)).Methods("DELETE")
	api.HandleFunc("/views/{id}/seed", handlers.SeedView(deps.Views)).Methods("POST")
	api.HandleFunc("/views/{id}/entities/{entity}/toggle", handlers.ToggleEntity(deps.Views)).Methods("POST")

	// Form endpoints
	api.HandleFunc("/forms", handlers.CreateForm(deps.Forms)).Methods("POST")
	api.HandleFunc("/forms/{id}", handlers.GetForm(deps.Forms)).Methods("GET")
	api.HandleFunc("/forms/{id}", handlers.DeleteForm(deps.Forms)).Methods("DELETE")
	api.HandleFunc("/forms/{id}/fields/{name}", handlers.UpdateField(deps.Forms)).Methods("PUT")
	api.HandleFunc("/forms/{id}/submit", handlers.SubmitForm(deps.Forms)).Methods("POST")

	// Settings endpoints
	if deps.Settings != nil {
		api.HandleFunc("/settings", handlers.GetSettings(deps.Settings)).Methods("GET")
		api.HandleFunc("/settings", handlers.UpdateSettings(settingsRepo, deps.Settings)).Methods("PUT")
	}

	// Serve static frontend files
	if deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
