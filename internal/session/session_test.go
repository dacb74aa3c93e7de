package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/validate"
)

type memMutator struct {
	mu      sync.Mutex
	present map[string]bool
}

func (m *memMutator) Check(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present[id], nil
}

func (m *memMutator) Add(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present[id] = true
	return nil
}

func (m *memMutator) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.present, id)
	return nil
}

func TestViews_OpenToggleClose(t *testing.T) {
	m := &memMutator{present: map[string]bool{"evt-2": true}}
	var mu sync.Mutex
	var seen []string
	views := NewViews(map[relation.Kind]relation.Mutator{relation.KindBookmark: m}, 2, func(viewID string, ch relation.Change) {
		mu.Lock()
		seen = append(seen, viewID+":"+ch.Current.String())
		mu.Unlock()
	})

	view, states, err := views.Open(context.Background(), relation.KindBookmark, []string{"evt-1", "evt-2"})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if states["evt-1"] || !states["evt-2"] {
		t.Fatalf("unexpected seeded states: %v", states)
	}

	if _, err := view.Controller.Toggle(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Toggle error: %v", err)
	}
	mu.Lock()
	if len(seen) != 2 || seen[1] != view.ID+":present" {
		t.Fatalf("unexpected observed changes: %v", seen)
	}
	mu.Unlock()

	if views.Len() != 1 {
		t.Fatalf("expected one view; got %d", views.Len())
	}
	if err := views.Close(view.ID); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !view.Controller.Closed() {
		t.Fatalf("closing a view must close its controller")
	}
	if _, err := views.Get(view.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
	if err := views.Close(view.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second close; got %v", err)
	}
}

func TestViews_UnsupportedKind(t *testing.T) {
	views := NewViews(map[relation.Kind]relation.Mutator{}, 1, nil)
	if _, _, err := views.Open(context.Background(), relation.KindRegistration, nil); err == nil {
		t.Fatalf("expected error for missing mutator")
	}
}

type nopSubmitter struct{}

func (nopSubmitter) SubmitFeedback(ctx context.Context, eventID string, feedback map[string]any) error {
	return nil
}

func (nopSubmitter) RequestCertificate(ctx context.Context, eventID string, request map[string]any) error {
	return nil
}

type heldTimer struct{ stopped bool }

func (t *heldTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type heldScheduler struct {
	mu     sync.Mutex
	timers []*heldTimer
}

func (s *heldScheduler) AfterFunc(d time.Duration, f func()) validate.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &heldTimer{}
	s.timers = append(s.timers, t)
	return t
}

func TestForms_CloseCancelsTimers(t *testing.T) {
	sched := &heldScheduler{}
	reg := NewForms(nopSubmitter{}, sched, 500*time.Millisecond, nil)

	s, err := reg.Open("feedback", "evt-1")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if s.EventID != "evt-1" || s.Form.Kind != "feedback" {
		t.Fatalf("unexpected session: %+v", s)
	}
	s.Form.Input("comments", "hello there")

	if err := reg.Close(s.Form.ID); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if len(sched.timers) != 1 || !sched.timers[0].stopped {
		t.Fatalf("expected the pending timer to be stopped")
	}
	if err := s.Form.Input("comments", "again"); !errors.Is(err, validate.ErrFormClosed) {
		t.Fatalf("expected closed form; got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no forms; got %d", reg.Len())
	}
}

func TestForms_UnknownKindAndDelay(t *testing.T) {
	reg := NewForms(nopSubmitter{}, nil, time.Second, nil)
	if _, err := reg.Open("survey", "evt-1"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	reg.SetDelay(250 * time.Millisecond)
	if reg.Delay() != 250*time.Millisecond {
		t.Fatalf("unexpected delay %s", reg.Delay())
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}
