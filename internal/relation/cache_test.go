package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/campus-portal/companion/internal/remote"
)

type batchMutator struct {
	*fakeMutator
	batchCalls int
	batchErr   error
}

func (b *batchMutator) CheckMany(ctx context.Context, ids []string) (map[string]bool, error) {
	b.batchCalls++
	if b.batchErr != nil {
		return nil, b.batchErr
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = b.present[id]
	}
	return out, nil
}

func TestCacheSeed_FailuresDefaultToAbsent(t *testing.T) {
	m := newFakeMutator()
	m.present["evt-1"] = true
	m.present["evt-3"] = true
	m.checkErr["evt-3"] = errors.New("unreachable")
	c := NewController(KindBookmark, m)

	got, err := NewCache(c, 2).Seed(context.Background(), []string{"evt-1", "evt-2", "evt-3", "evt-1"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	want := map[string]bool{"evt-1": true, "evt-2": false, "evt-3": false}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries; got %v", len(want), got)
	}
	for id, v := range want {
		if got[id] != v {
			t.Fatalf("%s: expected %v; got %v", id, v, got[id])
		}
	}
	if m.checks != 3 {
		t.Fatalf("expected duplicate ids to be checked once; got %d checks", m.checks)
	}
}

func TestCacheSeed_KeepsPendingState(t *testing.T) {
	m := newFakeMutator()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 1)
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", false)

	go c.Toggle(context.Background(), "evt-1")
	<-m.entered
	defer close(m.gate)

	got, err := NewCache(c, 0).Seed(context.Background(), []string{"evt-1"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if !got["evt-1"] {
		t.Fatalf("expected optimistic value to be kept while pending")
	}
	if state, _ := c.State("evt-1"); state != StatePendingAdd {
		t.Fatalf("expected pending add; got %s", state)
	}
}

func TestCacheSeed_UsesBatchPath(t *testing.T) {
	m := &batchMutator{fakeMutator: newFakeMutator()}
	m.present["evt-2"] = true
	c := NewController(KindBookmark, m)

	got, err := NewCache(c, 4).Seed(context.Background(), []string{"evt-1", "evt-2"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if m.batchCalls != 1 || m.checks != 0 {
		t.Fatalf("expected one batch call and no single checks; got batch=%d single=%d", m.batchCalls, m.checks)
	}
	if got["evt-1"] || !got["evt-2"] {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestCacheSeed_BatchFailureDefaultsToAbsent(t *testing.T) {
	m := &batchMutator{fakeMutator: newFakeMutator(), batchErr: errors.New("down")}
	m.present["evt-1"] = true
	c := NewController(KindBookmark, m)

	got, err := NewCache(c, 4).Seed(context.Background(), []string{"evt-1"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if got["evt-1"] {
		t.Fatalf("expected absent after batch failure")
	}
}

// slowCheck answers Check from the fake's current state, then holds the
// answer until release is closed.
type slowCheck struct {
	*fakeMutator
	read    chan struct{}
	release chan struct{}
}

func (s *slowCheck) Check(ctx context.Context, id string) (bool, error) {
	present, err := s.fakeMutator.Check(ctx, id)
	s.read <- struct{}{}
	<-s.release
	return present, err
}

func TestCacheSeed_StaleCheckLosesToToggle(t *testing.T) {
	m := &slowCheck{fakeMutator: newFakeMutator(), read: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", false)

	type seedResult struct {
		states map[string]bool
		err    error
	}
	done := make(chan seedResult, 1)
	go func() {
		states, err := NewCache(c, 1).Seed(context.Background(), []string{"evt-1"})
		done <- seedResult{states, err}
	}()
	<-m.read

	state, err := c.Toggle(context.Background(), "evt-1")
	if err != nil || state != StatePresent {
		t.Fatalf("expected toggle to confirm present; got %s, %v", state, err)
	}

	close(m.release)
	res := <-done
	if res.err != nil {
		t.Fatalf("Seed error: %v", res.err)
	}
	if !res.states["evt-1"] {
		t.Fatalf("expected seed to report the toggled value; got %v", res.states)
	}
	if state, _ := c.State("evt-1"); state != StatePresent {
		t.Fatalf("expected present after stale check; got %s", state)
	}
}

func TestCacheSeed_PendingAtCheckTimeKeepsResolvedState(t *testing.T) {
	m := &slowCheck{fakeMutator: newFakeMutator(), read: make(chan struct{}, 1), release: make(chan struct{})}
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 1)
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", false)

	toggled := make(chan State, 1)
	go func() {
		state, _ := c.Toggle(context.Background(), "evt-1")
		toggled <- state
	}()
	<-m.entered

	done := make(chan map[string]bool, 1)
	go func() {
		states, _ := NewCache(c, 1).Seed(context.Background(), []string{"evt-1"})
		done <- states
	}()
	<-m.read

	// The check saw the server before the add landed.
	close(m.gate)
	if state := <-toggled; state != StatePresent {
		t.Fatalf("expected toggle to confirm present; got %s", state)
	}
	close(m.release)
	<-done

	if state, _ := c.State("evt-1"); state != StatePresent {
		t.Fatalf("expected present; got %s", state)
	}
}

func TestCacheSeed_FailedRecheckKeepsKnownState(t *testing.T) {
	m := newFakeMutator()
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", true)
	log := &changeLog{}
	c.Subscribe(log.record)

	m.checkErr["evt-1"] = &remote.Error{Op: "check bookmark", Kind: remote.KindNetwork, Message: "timeout"}
	got, err := NewCache(c, 2).Seed(context.Background(), []string{"evt-1", "evt-2"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if !got["evt-1"] || got["evt-2"] {
		t.Fatalf("unexpected result: %v", got)
	}
	if state, _ := c.State("evt-1"); state != StatePresent {
		t.Fatalf("expected present to survive a failed check; got %s", state)
	}
	if changes := log.all(); len(changes) != 0 {
		t.Fatalf("expected no notifications; got %+v", changes)
	}
}

func TestCacheSeed_BatchFailureKeepsKnownState(t *testing.T) {
	m := &batchMutator{fakeMutator: newFakeMutator(), batchErr: errors.New("down")}
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", true)

	got, err := NewCache(c, 4).Seed(context.Background(), []string{"evt-1"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if !got["evt-1"] {
		t.Fatalf("expected present to survive a failed batch")
	}
}

func TestCacheSeed_CorrectsTerminalState(t *testing.T) {
	m := newFakeMutator()
	c := NewController(KindBookmark, m)
	c.Seed("evt-1", true)

	got, err := NewCache(c, 1).Seed(context.Background(), []string{"evt-1"})
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if got["evt-1"] {
		t.Fatalf("expected server truth to win for an idle entity")
	}
}

func TestCacheSeed_ClosedController(t *testing.T) {
	c := NewController(KindBookmark, newFakeMutator())
	c.Close()
	if _, err := NewCache(c, 1).Seed(context.Background(), []string{"evt-1"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed; got %v", err)
	}
}
