package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/campus-portal/companion/internal/forms"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/validate"
)

// FormSession is one mounted form bound to an event.
type FormSession struct {
	EventID string
	Form    *validate.Form
	Send    forms.SendFunc
}

// FormObserver receives every field settle and flush of every form.
type FormObserver func(formID string, ev validate.FieldEvent)

// Forms is the registry of mounted forms.
type Forms struct {
	submitter forms.Submitter
	scheduler validate.Scheduler
	observer  FormObserver

	mu       sync.RWMutex
	delay    time.Duration
	sessions map[string]*FormSession
}

// NewForms creates a registry whose fields settle after delay.
func NewForms(submitter forms.Submitter, scheduler validate.Scheduler, delay time.Duration, observer FormObserver) *Forms {
	if scheduler == nil {
		scheduler = validate.RealScheduler{}
	}
	return &Forms{
		submitter: submitter,
		scheduler: scheduler,
		observer:  observer,
		delay:     delay,
		sessions:  make(map[string]*FormSession),
	}
}

// SetDelay changes the settle delay for forms opened from now on.
func (f *Forms) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// Delay returns the current settle delay.
func (f *Forms) Delay() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.delay
}

// Open mounts a form of kind for eventID.
func (f *Forms) Open(kind, eventID string) (*FormSession, error) {
	spec, ok := forms.SpecFor(kind)
	if !ok {
		return nil, fmt.Errorf("unknown form kind %q", kind)
	}
	send, err := forms.Sender(kind, eventID, f.submitter)
	if err != nil {
		return nil, err
	}

	id := storage.GenerateID()
	var observer func(validate.FieldEvent)
	if f.observer != nil {
		observer = func(ev validate.FieldEvent) { f.observer(id, ev) }
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s := &FormSession{
		EventID: eventID,
		Form:    validate.NewForm(id, spec, f.scheduler, f.delay, observer),
		Send:    send,
	}
	f.sessions[id] = s
	return s, nil
}

// Get returns a mounted form.
func (f *Forms) Get(id string) (*FormSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close unmounts a form, cancelling its pending validations.
func (f *Forms) Close(id string) error {
	f.mu.Lock()
	s, ok := f.sessions[id]
	delete(f.sessions, id)
	f.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Form.Close()
	return nil
}

// CloseAll unmounts every form.
func (f *Forms) CloseAll() {
	f.mu.Lock()
	sessions := f.sessions
	f.sessions = make(map[string]*FormSession)
	f.mu.Unlock()
	for _, s := range sessions {
		s.Form.Close()
	}
}

// Len returns the number of mounted forms.
func (f *Forms) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}
