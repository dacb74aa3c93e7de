package relation

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/campus-portal/companion/internal/remote"
)

var (
	// ErrInFlight is returned when a toggle arrives while the previous one for
	// the same entity is still unresolved. The toggle is dropped, not queued.
	ErrInFlight = errors.New("relation change already in flight")
	// ErrNotSeeded is returned for an entity the controller holds no state for.
	ErrNotSeeded = errors.New("relation not seeded")
	// ErrClosed is returned after the owning view has been closed.
	ErrClosed = errors.New("relation controller closed")
)

// Mutator is the remote side of one relation kind.
type Mutator interface {
	Check(ctx context.Context, entityID string) (bool, error)
	Add(ctx context.Context, entityID string) error
	Remove(ctx context.Context, entityID string) error
}

// BatchChecker is implemented by mutators that can check many entities in a
// single call.
type BatchChecker interface {
	CheckMany(ctx context.Context, entityIDs []string) (map[string]bool, error)
}

// Change describes one state transition. Failure is set when a mutation was
// rolled back; it carries the portal's classification and message for the
// notification shown to the user.
type Change struct {
	Kind     Kind          `json:"kind"`
	EntityID string        `json:"entity_id"`
	Previous State         `json:"previous"`
	Current  State         `json:"current"`
	Failure  *remote.Error `json:"failure,omitempty"`
}

// Observer receives changes. Observers are called outside the controller's
// lock and must not block for long.
type Observer func(Change)

// Controller owns the relation state of one view for one relation kind.
type Controller struct {
	kind    Kind
	mutator Mutator

	mu        sync.Mutex
	entries   map[string]*entry
	observers map[int]Observer
	nextObs   int
	seq       uint64
	closed    bool
}

type entry struct {
	state State
	// version changes every time a toggle starts on the entry.
	version uint64
}

// mark is an entry's version as seen before a reconciliation check.
type mark struct {
	seeded  bool
	pending bool
	version uint64
}

// NewController creates a controller with no seeded entities.
func NewController(kind Kind, mutator Mutator) *Controller {
	return &Controller{
		kind:      kind,
		mutator:   mutator,
		entries:   make(map[string]*entry),
		observers: make(map[int]Observer),
	}
}

// Kind returns the relation kind the controller manages.
func (c *Controller) Kind() Kind {
	return c.kind
}

// Mutator returns the remote side used by the controller.
func (c *Controller) Mutator() Mutator {
	return c.mutator
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(obs Observer) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = obs
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// State returns the current state of an entity.
func (c *Controller) State(entityID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[entityID]
	if !ok {
		return StateAbsent, false
	}
	return e.state, true
}

// Snapshot returns the state of every seeded entity.
func (c *Controller) Snapshot() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]State, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.state
	}
	return out
}

// EntityIDs returns the seeded entity ids in sorted order.
func (c *Controller) EntityIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Toggle flips the relation for an entity. The new state is applied at once
// as PendingAdd or PendingRemove, then the remote call decides: success
// confirms it, failure restores exactly the state held before the toggle and
// publishes a Change carrying the failure.
//
// Remote failures are never returned. The returned error is ErrInFlight,
// ErrNotSeeded or ErrClosed, and the returned state is the entity's state
// after the call.
func (c *Controller) Toggle(ctx context.Context, entityID string) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return StateAbsent, ErrClosed
	}
	e, ok := c.entries[entityID]
	if !ok {
		c.mu.Unlock()
		return StateAbsent, ErrNotSeeded
	}
	if e.state.Pending() {
		state := e.state
		c.mu.Unlock()
		return state, ErrInFlight
	}

	prior := e.state
	adding := prior == StateAbsent
	applied := StatePendingRemove
	if adding {
		applied = StatePendingAdd
	}
	e.state = applied
	c.seq++
	e.version = c.seq
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, Change{Kind: c.kind, EntityID: entityID, Previous: prior, Current: applied})

	var err error
	if adding {
		err = c.mutator.Add(ctx, entityID)
	} else {
		err = c.mutator.Remove(ctx, entityID)
	}

	c.mu.Lock()
	// The view may have been closed, or the entity forgotten, while the call
	// was in flight; the result then has nowhere to go.
	if c.closed || c.entries[entityID] != e {
		c.mu.Unlock()
		log.Printf("Dropping %s result for %s: view no longer mounted", c.kind, entityID)
		return prior, ErrClosed
	}

	change := Change{Kind: c.kind, EntityID: entityID, Previous: applied}
	if err != nil {
		e.state = prior
		change.Failure = remote.AsError(err)
		log.Printf("Rolled back %s %s for %s: %v", c.kind, applied, entityID, err)
	} else {
		e.state = terminal(adding)
	}
	change.Current = e.state
	observers = c.observersLocked()
	c.mu.Unlock()

	notify(observers, change)
	return change.Current, nil
}

// Seed records server truth for an entity. A pending entity is left alone so
// that an in-flight toggle wins over a concurrent reconciliation. It returns
// the entity's state after seeding.
func (c *Controller) Seed(entityID string, present bool) (State, error) {
	return c.reconcile(entityID, present, true, nil)
}

// marks records the version of each entity before its server state is read.
func (c *Controller) marks(entityIDs []string) map[string]mark {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]mark, len(entityIDs))
	for _, id := range entityIDs {
		if e, ok := c.entries[id]; ok {
			out[id] = mark{seeded: true, pending: e.state.Pending(), version: e.version}
		}
	}
	return out
}

// reconcile applies a server answer read after m was taken. known is false
// when the check failed: a new entity then starts Absent and a seeded one is
// left as it is. With a mark, an entity that was pending or has been toggled
// since keeps its state, since the answer may predate the toggle.
func (c *Controller) reconcile(entityID string, present, known bool, m *mark) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return StateAbsent, ErrClosed
	}

	e, ok := c.entries[entityID]
	if !ok {
		next := terminal(known && present)
		c.entries[entityID] = &entry{state: next}
		c.mu.Unlock()
		return next, nil
	}

	next := terminal(present)
	stale := m != nil && (m.pending || (m.seeded && e.version != m.version) || (!m.seeded && e.version != 0))
	if !known || stale || e.state.Pending() || e.state == next {
		state := e.state
		c.mu.Unlock()
		return state, nil
	}

	prev := e.state
	e.state = next
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, Change{Kind: c.kind, EntityID: entityID, Previous: prev, Current: next})
	return next, nil
}

// Forget drops an entity's state. An in-flight toggle for it resolves into
// nothing.
func (c *Controller) Forget(entityID string) {
	c.mu.Lock()
	delete(c.entries, entityID)
	c.mu.Unlock()
}

// Close detaches the controller from its view. Pending results are dropped
// and further calls return ErrClosed. Closing twice is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.entries = make(map[string]*entry)
	c.observers = make(map[int]Observer)
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) observersLocked() []Observer {
	if len(c.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.observers[id])
	}
	return out
}

func notify(observers []Observer, change Change) {
	for _, obs := range observers {
		obs(change)
	}
}
