package validate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnknownField is returned for input to a field the form does not define.
	ErrUnknownField = errors.New("unknown field")
	// ErrFormClosed is returned once a form has been submitted or unmounted.
	ErrFormClosed = errors.New("form closed")
	// ErrSubmitInProgress is returned when a submit overlaps another one.
	ErrSubmitInProgress = errors.New("submit already in progress")
)

// Rule binds a validation function to a named field.
type Rule struct {
	Field string
	Check Func
}

// Spec describes a form: its kind and its fields in display order.
type Spec struct {
	Kind  string
	Rules []Rule
}

// Errors is the set of field failures that blocked a submit.
type Errors []*Error

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldState is a point-in-time view of one field.
type FieldState struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Committed string `json:"committed"`
	Error     *Error `json:"error,omitempty"`
	Pending   bool   `json:"pending"`
}

// Form is one mounted form session. Its fields debounce validation while the
// user types and are revalidated synchronously on submit.
type Form struct {
	ID   string
	Kind string

	scheduler Scheduler
	delay     time.Duration
	order     []string
	fields    map[string]*Field
	checks    map[string]Func

	mu         sync.Mutex
	closed     bool
	submitting bool
}

// NewForm mounts a form. observer receives every settle and flush and may be nil.
func NewForm(id string, spec Spec, s Scheduler, delay time.Duration, observer func(FieldEvent)) *Form {
	if s == nil {
		s = RealScheduler{}
	}
	f := &Form{
		ID:        id,
		Kind:      spec.Kind,
		scheduler: s,
		delay:     delay,
		fields:    make(map[string]*Field, len(spec.Rules)),
		checks:    make(map[string]Func, len(spec.Rules)),
	}
	for _, rule := range spec.Rules {
		f.order = append(f.order, rule.Field)
		f.fields[rule.Field] = NewField(rule.Field, observer)
		f.checks[rule.Field] = named(rule.Field, rule.Check)
	}
	return f
}

// named stamps the field name onto *Error results.
func named(field string, fn Func) Func {
	return func(value string) error {
		err := fn(value)
		var fe *Error
		if errors.As(err, &fe) {
			stamped := *fe
			stamped.Field = field
			return &stamped
		}
		return err
	}
}

// Input records a raw value for a field and restarts its settle timer.
func (f *Form) Input(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFormClosed
	}
	field, ok := f.fields[name]
	if !ok {
		return ErrUnknownField
	}
	field.SetRaw(value)
	Schedule(f.scheduler, field, f.delay, f.checks[name])
	return nil
}

// Validate flushes every field and returns the current values, or Errors when
// any field fails.
func (f *Form) Validate() (map[string]string, error) {
	values := make(map[string]string, len(f.order))
	var failures Errors
	for _, name := range f.order {
		field := f.fields[name]
		if err := Flush(field, f.checks[name]); err != nil {
			var fe *Error
			if !errors.As(err, &fe) {
				fe = &Error{Field: name, Kind: KindInvalidFormat, Message: err.Error()}
			}
			failures = append(failures, fe)
		}
		values[name] = field.Committed()
	}
	if len(failures) > 0 {
		return values, failures
	}
	return values, nil
}

// Submit validates every field synchronously and, only if all pass, hands the
// values to send. A successful send closes the form; a failed send leaves it
// mounted so the user can retry.
func (f *Form) Submit(ctx context.Context, send func(ctx context.Context, values map[string]string) error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFormClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInProgress
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	values, err := f.Validate()
	if err != nil {
		return err
	}
	if err := send(ctx, values); err != nil {
		return err
	}
	f.Close()
	return nil
}

// Close unmounts the form, cancelling every outstanding settle timer.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, field := range f.fields {
		field.Close()
	}
}

// Closed reports whether the form has been submitted or unmounted.
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Fields returns the state of every field in display order.
func (f *Form) Fields() []FieldState {
	states := make([]FieldState, 0, len(f.order))
	for _, name := range f.order {
		field := f.fields[name]
		state := FieldState{
			Name:      name,
			Value:     field.Raw(),
			Committed: field.Committed(),
			Pending:   field.Pending(),
		}
		var fe *Error
		if errors.As(field.Err(), &fe) {
			state.Error = fe
		}
		states = append(states, state)
	}
	return states
}
