// Package models contains the rows the companion caches.
package models

import (
	"time"

	"github.com/campus-portal/companion/internal/lifecycle"
)

// Source prefixes.
const (
	SourcePortal    = "portal"
	SourceICSPrefix = "ics:"
)

// Event is one cached event window. Rows are replaced per source on every
// sync, never edited in place.
type Event struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Venue     string    `json:"venue,omitempty"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Window returns the event's scheduled window.
func (e Event) Window() lifecycle.Window {
	return lifecycle.Window{Date: e.Date, StartTime: e.StartTime, EndTime: e.EndTime}
}
