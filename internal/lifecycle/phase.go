// Package lifecycle derives an event's lifecycle phase from its scheduled window
// and the current time.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase is the time-dependent lifecycle phase of an event.
type Phase int

// Phases in the only order an unchanged window can move through.
const (
	PhaseUpcoming Phase = iota
	PhaseLive
	PhaseCompleted
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhaseCompleted:
		return "completed"
	default:
		return "upcoming"
	}
}

// MarshalText implements encoding.TextMarshaler so phases serialize by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Window is the scheduled window of an event as served by the portal.
// Date is a calendar date and StartTime/EndTime are wall-clock times,
// typically in 12-hour form with a meridiem ("10:00 AM").
type Window struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ErrIncompleteWindow is returned by Bounds when a window field is empty.
var ErrIncompleteWindow = errors.New("incomplete event window")

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
}

var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15:04",
}

// Bounds combines the window's date with its start and end times in loc.
// An end time earlier than the start time means the event runs past midnight,
// so the end moves to the following day.
func Bounds(w Window, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(w.Date) == "" || strings.TrimSpace(w.StartTime) == "" || strings.TrimSpace(w.EndTime) == "" {
		return time.Time{}, time.Time{}, ErrIncompleteWindow
	}

	year, month, day, err := parseDate(w.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startHour, startMin, err := parseClock(w.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing start time: %w", err)
	}
	endHour, endMin, err := parseClock(w.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing end time: %w", err)
	}

	start = time.Date(year, month, day, startHour, startMin, 0, 0, loc)
	end = time.Date(year, month, day, endHour, endMin, 0, 0, loc)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// Resolve returns the phase of w at now, interpreting the window in the local
// time zone.
func Resolve(w Window, now time.Time) Phase {
	return ResolveIn(w, now, time.Local)
}

// ResolveIn returns the phase of w at now, interpreting the window in loc.
// Both ends of the window are inclusive: an event is Live at exactly its start
// and at exactly its end.
//
// A missing or unparsable window resolves to PhaseUpcoming instead of failing.
// This is deliberate: display code must always get a phase, and treating an
// incomplete event as not yet started is the least misleading choice.
func ResolveIn(w Window, now time.Time, loc *time.Location) Phase {
	start, end, err := Bounds(w, loc)
	if err != nil {
		return PhaseUpcoming
	}
	switch {
	case now.Before(start):
		return PhaseUpcoming
	case now.After(end):
		return PhaseCompleted
	default:
		return PhaseLive
	}
}

func parseDate(value string) (int, time.Month, int, error) {
	value = strings.TrimSpace(value)
	candidates := []string{value}
	// ISO timestamps ("2024-06-01T00:00:00.000Z") carry the calendar date in
	// their first ten characters; the time part is ignored.
	if len(value) > 10 {
		candidates = append(candidates, value[:10])
	}

	for _, candidate := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t.Year(), t.Month(), t.Day(), nil
			}
		}
	}
	return 0, 0, 0, fmt.Errorf("unrecognized date %q", value)
}

func parseClock(value string) (hour, minute int, err error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, ".", "")
	for _, layout := range clockLayouts {
		if t, perr := time.Parse(layout, value); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("unrecognized time %q", value)
}
