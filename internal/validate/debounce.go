// Package validate provides debounced field validation for form sessions.
package validate

import (
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback. Stopping a fired or stopped timer is a no-op.
	Stop() bool
}

// Scheduler schedules callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks with the runtime timer.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Func validates a raw value and returns a non-nil error describing the first
// problem found. Errors returned by the built-in rules are *Error.
type Func func(value string) error

// FieldEvent is reported whenever a field's committed value is validated,
// either because input settled or because it was flushed.
type FieldEvent struct {
	Field   string
	Value   string
	Err     error
	Flushed bool
}

// Field holds the state of one form input. Raw is the latest typed value;
// Committed is the value most recently validated.
type Field struct {
	Name string

	mu        sync.Mutex
	raw       string
	committed string
	err       error
	pending   Timer
	gen       uint64
	closed    bool
	observer  func(FieldEvent)
}

// NewField creates a field. The observer may be nil.
func NewField(name string, observer func(FieldEvent)) *Field {
	return &Field{Name: name, observer: observer}
}

// SetRaw records a new raw value without scheduling validation.
func (f *Field) SetRaw(value string) {
	f.mu.Lock()
	f.raw = value
	f.mu.Unlock()
}

// Raw returns the latest raw value.
func (f *Field) Raw() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

// Committed returns the last validated value.
func (f *Field) Committed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

// Err returns the error from the last validation, or nil.
func (f *Field) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Pending reports whether a settle timer is outstanding.
func (f *Field) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// Close cancels any outstanding timer and stops the field from accepting
// further results. Closing twice is a no-op.
func (f *Field) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cancelLocked()
}

func (f *Field) cancelLocked() {
	if f.pending != nil {
		f.pending.Stop()
		f.pending = nil
	}
	// Invalidate a callback that already fired but has not taken the lock yet.
	f.gen++
}

// Schedule cancels the field's pending timer and starts a new one. When delay
// passes without another call, fn runs once against the latest raw value and
// its result is written to the field.
func Schedule(s Scheduler, f *Field, delay time.Duration, fn Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.cancelLocked()
	gen := f.gen
	f.pending = s.AfterFunc(delay, func() {
		settle(f, gen, fn)
	})
}

func settle(f *Field, gen uint64, fn Func) {
	f.mu.Lock()
	if f.closed || f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.pending = nil
	value := f.raw
	f.mu.Unlock()

	err := fn(value)

	f.mu.Lock()
	// Newer input arrived while validating; its own settle will report.
	if f.closed || f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.committed = value
	f.err = err
	observer := f.observer
	f.mu.Unlock()

	if observer != nil {
		observer(FieldEvent{Field: f.Name, Value: value, Err: err})
	}
}

// Flush cancels any pending timer, commits the latest raw value and validates
// it synchronously. Submit paths call Flush so that a submit straight after a
// fast edit never relies on a stale debounced result.
func Flush(f *Field, fn Func) error {
	f.mu.Lock()
	f.cancelLocked()
	value := f.raw
	f.mu.Unlock()

	err := fn(value)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return err
	}
	f.committed = value
	f.err = err
	observer := f.observer
	f.mu.Unlock()

	if observer != nil {
		observer(FieldEvent{Field: f.Name, Value: value, Err: err, Flushed: true})
	}
	return err
}
