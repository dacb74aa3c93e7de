package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/campus-portal/companion/internal/api/middleware"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/storage/models"
)

// SettingsRuntime is the running companion that settings are applied to.
type SettingsRuntime interface {
	Current() models.Settings
	Apply(models.Settings) error
}

// GetSettings returns the settings currently in effect.
func GetSettings(runtime SettingsRuntime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, runtime.Current())
	}
}

// UpdateSettings merges the non-zero fields of the request into the current
// settings, persists them and applies them to the running companion.
func UpdateSettings(repo *storage.SettingsRepository, runtime SettingsRuntime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.Settings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.PhaseTickSeconds < 0 || req.DebounceMS < 0 || req.CatalogSyncMinutes < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Settings must be positive")
			return
		}

		next := runtime.Current()
		if req.PhaseTickSeconds > 0 {
			next.PhaseTickSeconds = req.PhaseTickSeconds
		}
		if req.DebounceMS > 0 {
			next.DebounceMS = req.DebounceMS
		}
		if req.CatalogSyncMinutes > 0 {
			next.CatalogSyncMinutes = req.CatalogSyncMinutes
		}

		if err := repo.Save(r.Context(), next.Values()); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update settings")
			return
		}
		if err := runtime.Apply(next); err != nil {
			log.Printf("Failed to apply settings: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to apply settings")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, next)
	}
}
