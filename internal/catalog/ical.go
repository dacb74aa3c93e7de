// Package catalog keeps the local event catalog in step with the portal and
// any configured ICS feeds, and drives phase re-evaluation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/campus-portal/companion/internal/storage/models"
)

const (
	windowDateLayout  = "2006-01-02"
	windowClockLayout = "3:04 PM"

	// DefaultHorizon bounds recurrence expansion.
	DefaultHorizon = 30 * 24 * time.Hour

	maxOccurrencesPerEvent = 500
)

// Feed is an ICS calendar published at a URL.
type Feed struct {
	URL        string
	location   *time.Location
	horizon    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewFeed creates a feed whose events are rendered as windows in loc.
func NewFeed(url string, loc *time.Location) *Feed {
	if loc == nil {
		loc = time.Local
	}
	return &Feed{
		URL:        url,
		location:   loc,
		horizon:    DefaultHorizon,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Name implements Source.
func (f *Feed) Name() string {
	return models.SourceICSPrefix + f.URL
}

// Fetch implements Source.
func (f *Feed) Fetch(ctx context.Context) ([]models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	now := f.now()
	return ParseICS(resp.Body, f.location, now.Add(-24*time.Hour), now.Add(f.horizon))
}

// ParseICS reads a calendar and returns one event per occurrence that starts
// within [from, to]. Recurring events become one entry per occurrence with id
// "<uid>@<start RFC3339>"; single events keep their UID.
func ParseICS(r io.Reader, loc *time.Location, from, to time.Time) ([]models.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var out []models.Event
	for _, ve := range cal.Events() {
		occ, err := expandVEvent(ve, loc, from, to)
		if err != nil {
			log.Printf("Skipping calendar event: %v", err)
			continue
		}
		out = append(out, occ...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func expandVEvent(ve *ical.VEvent, loc *time.Location, from, to time.Time) ([]models.Event, error) {
	uid := propertyValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return nil, errors.New("missing UID")
	}
	// Overrides of recurring instances are not tracked separately.
	if ve.GetProperty("RECURRENCE-ID") != nil {
		return nil, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", uid, err)
	}
	end, err := ve.GetEndAt()
	if err != nil || end.Before(start) {
		end = start
	}
	duration := end.Sub(start)

	base := models.Event{
		Title: propertyValue(ve, ical.ComponentPropertySummary),
		Venue: propertyValue(ve, ical.ComponentPropertyLocation),
	}

	raw := propertyValue(ve, ical.ComponentPropertyRrule)
	if raw == "" {
		if start.Before(from) || start.After(to) {
			return nil, nil
		}
		e := base
		e.ID = uid
		setWindow(&e, start, duration, loc)
		return []models.Event{e}, nil
	}

	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, fmt.Errorf("event %s: parsing RRULE: %w", uid, err)
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if ex, err := parseICSTime(part, start.Location()); err == nil {
				set.ExDate(ex)
			}
		}
	}

	times := set.Between(from.In(start.Location()), to.In(start.Location()), true)
	if len(times) > maxOccurrencesPerEvent {
		log.Printf("Truncating %d occurrences of %s", len(times), uid)
		times = times[:maxOccurrencesPerEvent]
	}

	out := make([]models.Event, 0, len(times))
	for _, t := range times {
		e := base
		e.ID = uid + "@" + t.UTC().Format(time.RFC3339)
		setWindow(&e, t, duration, loc)
		out = append(out, e)
	}
	return out, nil
}

// setWindow renders an occurrence as a portal-style window. Windows can only
// express a single start date, so occurrences of a day or longer end at the
// last minute of their start day.
func setWindow(e *models.Event, start time.Time, duration time.Duration, loc *time.Location) {
	start = start.In(loc)
	end := start.Add(duration)
	if duration >= 24*time.Hour {
		end = time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 0, 0, loc)
	}
	e.Date = start.Format(windowDateLayout)
	e.StartTime = start.Format(windowClockLayout)
	e.EndTime = end.Format(windowClockLayout)
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
