package lifecycle

import (
	"testing"
	"time"
)

func TestTracker_EvaluateReportsTransitionsOnce(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("evt-1", scenarioWindow)

	if changes := tr.Evaluate(at(9, 0, 0)); len(changes) != 0 {
		t.Fatalf("expected no changes on first evaluation; got %+v", changes)
	}

	changes := tr.Evaluate(at(10, 30, 0))
	if len(changes) != 1 {
		t.Fatalf("expected one change; got %+v", changes)
	}
	if changes[0].EventID != "evt-1" || changes[0].Previous != PhaseUpcoming || changes[0].Current != PhaseLive {
		t.Fatalf("unexpected change: %+v", changes[0])
	}

	if changes := tr.Evaluate(at(10, 45, 0)); len(changes) != 0 {
		t.Fatalf("expected no repeat; got %+v", changes)
	}

	changes = tr.Evaluate(at(12, 0, 0))
	if len(changes) != 1 || changes[0].Current != PhaseCompleted {
		t.Fatalf("expected completed transition; got %+v", changes)
	}
}

func TestTracker_ClockGoingBackwardsDoesNotRegress(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("evt-1", scenarioWindow)
	tr.Evaluate(at(10, 30, 0))

	if changes := tr.Evaluate(at(9, 0, 0)); len(changes) != 0 {
		t.Fatalf("expected no regression; got %+v", changes)
	}
	if phase, ok := tr.Phase("evt-1", at(9, 0, 0)); !ok || phase != PhaseLive {
		t.Fatalf("expected live to stick; got %s (tracked=%v)", phase, ok)
	}
}

func TestTracker_RescheduledWindowReportsMoveBack(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("evt-1", scenarioWindow)
	tr.Evaluate(at(10, 30, 0))

	// Rescheduled to the afternoon.
	tr.Track("evt-1", Window{Date: "2024-06-01", StartTime: "2:00 PM", EndTime: "3:00 PM"})
	if phase, _ := tr.Phase("evt-1", at(10, 31, 0)); phase != PhaseUpcoming {
		t.Fatalf("expected upcoming after reschedule; got %s", phase)
	}
	changes := tr.Evaluate(at(10, 31, 0))
	if len(changes) != 1 || changes[0].Previous != PhaseLive || changes[0].Current != PhaseUpcoming {
		t.Fatalf("expected live -> upcoming; got %+v", changes)
	}
	if changes := tr.Evaluate(at(10, 32, 0)); len(changes) != 0 {
		t.Fatalf("expected the move to be reported once; got %+v", changes)
	}
}

func TestTracker_CompletedEventRescheduled(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("evt-1", scenarioWindow)
	tr.Evaluate(at(12, 0, 0))

	tr.Track("evt-1", Window{Date: "2024-06-01", StartTime: "11:30 AM", EndTime: "1:00 PM"})
	changes := tr.Evaluate(at(12, 0, 0))
	if len(changes) != 1 || changes[0].Previous != PhaseCompleted || changes[0].Current != PhaseLive {
		t.Fatalf("expected completed -> live; got %+v", changes)
	}

	// The new window is clamped again once its phase is recorded.
	if changes := tr.Evaluate(at(11, 0, 0)); len(changes) != 0 {
		t.Fatalf("expected no regression after reschedule; got %+v", changes)
	}
}

func TestTracker_FirstTrackRecordsSilently(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("evt-1", scenarioWindow)
	tr.Track("evt-1", Window{Date: "2024-06-01", StartTime: "2:00 PM", EndTime: "3:00 PM"})
	if changes := tr.Evaluate(at(14, 30, 0)); len(changes) != 0 {
		t.Fatalf("expected a never-evaluated window to record silently; got %+v", changes)
	}
}

func TestTracker_RetainDropsMissingEvents(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Track("a", scenarioWindow)
	tr.Track("b", scenarioWindow)
	tr.Retain(map[string]bool{"a": true})

	if tr.Len() != 1 {
		t.Fatalf("expected 1 tracked event; got %d", tr.Len())
	}
	if _, ok := tr.Phase("b", at(10, 0, 0)); ok {
		t.Fatalf("expected b to be untracked")
	}
}
