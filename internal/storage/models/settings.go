package models

import "strconv"

// Setting keys.
const (
	SettingPhaseTickSeconds   = "phase_tick_seconds"
	SettingDebounceMS         = "debounce_ms"
	SettingCatalogSyncMinutes = "catalog_sync_minutes"
)

// Settings are the runtime-tunable companion settings.
type Settings struct {
	PhaseTickSeconds   int `json:"phase_tick_seconds"`
	DebounceMS         int `json:"debounce_ms"`
	CatalogSyncMinutes int `json:"catalog_sync_minutes"`
}

// Values returns the settings as stored key/value pairs.
func (s Settings) Values() map[string]string {
	return map[string]string{
		SettingPhaseTickSeconds:   strconv.Itoa(s.PhaseTickSeconds),
		SettingDebounceMS:         strconv.Itoa(s.DebounceMS),
		SettingCatalogSyncMinutes: strconv.Itoa(s.CatalogSyncMinutes),
	}
}

// Apply overrides fields from stored values. Unknown keys and values that are
// not positive integers are ignored.
func (s *Settings) Apply(values map[string]string) {
	set := func(key string, dst *int) {
		if n, err := strconv.Atoi(values[key]); err == nil && n > 0 {
			*dst = n
		}
	}
	set(SettingPhaseTickSeconds, &s.PhaseTickSeconds)
	set(SettingDebounceMS, &s.DebounceMS)
	set(SettingCatalogSyncMinutes, &s.CatalogSyncMinutes)
}
