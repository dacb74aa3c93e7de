// Package relation keeps user-to-entity relations (bookmarks, registrations)
// optimistically up to date while the portal confirms or rejects each change.
package relation

// State is the client-side state of one relation.
type State int

// Relation states. Absent and Present are confirmed; the pending states exist
// only while a remote call is in flight.
const (
	StateAbsent State = iota
	StatePendingAdd
	StatePresent
	StatePendingRemove
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StatePendingAdd:
		return "pending_add"
	case StatePresent:
		return "present"
	case StatePendingRemove:
		return "pending_remove"
	default:
		return "absent"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pending reports whether a remote call is in flight.
func (s State) Pending() bool {
	return s == StatePendingAdd || s == StatePendingRemove
}

// Displayed is the boolean the user sees: optimistic while pending.
func (s State) Displayed() bool {
	return s == StatePresent || s == StatePendingAdd
}

// terminal returns the confirmed state for a displayed boolean.
func terminal(present bool) State {
	if present {
		return StatePresent
	}
	return StateAbsent
}

// Kind names a relation type.
type Kind string

// Relation kinds.
const (
	KindBookmark     Kind = "bookmark"
	KindRegistration Kind = "registration"
)

// Valid reports whether k is a known relation kind.
func (k Kind) Valid() bool {
	return k == KindBookmark || k == KindRegistration
}
