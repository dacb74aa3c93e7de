package api

import (
	"time"

	"github.com/campus-portal/companion/internal/catalog"
	"github.com/campus-portal/companion/internal/session"
	"github.com/campus-portal/companion/internal/storage/models"
)

// Runtime applies tunable settings to the running scheduler and form registry.
type Runtime struct {
	Scheduler *catalog.Scheduler
	Forms     *session.Forms
}

// Current returns the settings in effect.
func (rt Runtime) Current() models.Settings {
	intervals := rt.Scheduler.Intervals()
	return models.Settings{
		PhaseTickSeconds:   int(intervals.PhaseTick / time.Second),
		DebounceMS:         int(rt.Forms.Delay() / time.Millisecond),
		CatalogSyncMinutes: int(intervals.Sync / time.Minute),
	}
}

// Apply reschedules the scheduler jobs and changes the settle delay of forms
// opened from now on.
func (rt Runtime) Apply(s models.Settings) error {
	if err := rt.Scheduler.Reschedule(catalog.Intervals{
		Sync:      time.Duration(s.CatalogSyncMinutes) * time.Minute,
		PhaseTick: time.Duration(s.PhaseTickSeconds) * time.Second,
	}); err != nil {
		return err
	}
	if s.DebounceMS > 0 {
		rt.Forms.SetDelay(time.Duration(s.DebounceMS) * time.Millisecond)
	}
	return nil
}
