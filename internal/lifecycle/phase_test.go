package lifecycle

import (
	"testing"
	"time"
)

var scenarioWindow = Window{Date: "2024-06-01", StartTime: "10:00 AM", EndTime: "11:00 AM"}

func at(hour, minute, second int) time.Time {
	return time.Date(2024, time.June, 1, hour, minute, second, 0, time.UTC)
}

func TestResolveIn_Scenario(t *testing.T) {
	cases := []struct {
		now  time.Time
		want Phase
	}{
		{at(10, 30, 0), PhaseLive},
		{at(9, 0, 0), PhaseUpcoming},
		{at(12, 0, 0), PhaseCompleted},
	}
	for _, tc := range cases {
		if got := ResolveIn(scenarioWindow, tc.now, time.UTC); got != tc.want {
			t.Fatalf("at %s: expected %s; got %s", tc.now.Format("15:04"), tc.want, got)
		}
	}
}

func TestResolveIn_BoundariesAreInclusive(t *testing.T) {
	if got := ResolveIn(scenarioWindow, at(10, 0, 0), time.UTC); got != PhaseLive {
		t.Fatalf("expected live at start; got %s", got)
	}
	if got := ResolveIn(scenarioWindow, at(11, 0, 0), time.UTC); got != PhaseLive {
		t.Fatalf("expected live at end; got %s", got)
	}
	justAfter := at(11, 0, 0).Add(time.Nanosecond)
	if got := ResolveIn(scenarioWindow, justAfter, time.UTC); got != PhaseCompleted {
		t.Fatalf("expected completed just past end; got %s", got)
	}
	justBefore := at(10, 0, 0).Add(-time.Nanosecond)
	if got := ResolveIn(scenarioWindow, justBefore, time.UTC); got != PhaseUpcoming {
		t.Fatalf("expected upcoming just before start; got %s", got)
	}
}

func TestResolveIn_IsMonotonic(t *testing.T) {
	prev := PhaseUpcoming
	for now := at(8, 0, 0); now.Before(at(14, 0, 0)); now = now.Add(7 * time.Minute) {
		got := ResolveIn(scenarioWindow, now, time.UTC)
		if got < prev {
			t.Fatalf("phase regressed at %s: %s after %s", now.Format("15:04"), got, prev)
		}
		prev = got
	}
	if prev != PhaseCompleted {
		t.Fatalf("expected to end completed; got %s", prev)
	}
}

func TestResolveIn_FailsClosedOnBadWindow(t *testing.T) {
	bad := []Window{
		{},
		{Date: "2024-06-01", StartTime: "10:00 AM"},
		{Date: "not a date", StartTime: "10:00 AM", EndTime: "11:00 AM"},
		{Date: "2024-06-01", StartTime: "ten o'clock", EndTime: "11:00 AM"},
		{Date: "2024-06-01", StartTime: "10:00 AM", EndTime: "25:99"},
	}
	for _, w := range bad {
		if got := ResolveIn(w, at(23, 0, 0), time.UTC); got != PhaseUpcoming {
			t.Fatalf("window %+v: expected upcoming; got %s", w, got)
		}
	}
}

func TestBounds_AcceptsPortalFormats(t *testing.T) {
	cases := []Window{
		{Date: "2024-06-01T00:00:00.000Z", StartTime: "10:00 AM", EndTime: "11:00 AM"},
		{Date: "06/01/2024", StartTime: "10:00am", EndTime: "11:00am"},
		{Date: "2024-06-01", StartTime: "10 AM", EndTime: "11 a.m."},
		{Date: "2024-06-01", StartTime: "10:00", EndTime: "11:00"},
	}
	for _, w := range cases {
		start, end, err := Bounds(w, time.UTC)
		if err != nil {
			t.Fatalf("window %+v: unexpected error %v", w, err)
		}
		if !start.Equal(at(10, 0, 0)) || !end.Equal(at(11, 0, 0)) {
			t.Fatalf("window %+v: got %s - %s", w, start, end)
		}
	}
}

func TestBounds_OvernightEndMovesToNextDay(t *testing.T) {
	w := Window{Date: "2024-06-01", StartTime: "10:00 PM", EndTime: "1:00 AM"}
	start, end, err := Bounds(w, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, time.June, 2, 1, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("expected end %s; got %s", want, end)
	}
	if got := ResolveIn(w, start.Add(2*time.Hour), time.UTC); got != PhaseLive {
		t.Fatalf("expected live after midnight; got %s", got)
	}
}

func TestResolveIn_UsesLocationForBothInstants(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 10:30 in UTC+9 is 01:30 UTC.
	now := time.Date(2024, time.June, 1, 1, 30, 0, 0, time.UTC)
	if got := ResolveIn(scenarioWindow, now, loc); got != PhaseLive {
		t.Fatalf("expected live; got %s", got)
	}
	if got := ResolveIn(scenarioWindow, now, time.UTC); got != PhaseUpcoming {
		t.Fatalf("expected upcoming in UTC; got %s", got)
	}
}
