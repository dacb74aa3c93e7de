package relation

import (
	"context"
	"sync"

	"github.com/campus-portal/companion/internal/remote"
)

// RelationClient is the portal surface for generic relations such as bookmarks.
type RelationClient interface {
	CheckRelation(ctx context.Context, relation, entityID string) (bool, error)
	CheckRelations(ctx context.Context, relation string, entityIDs []string) (map[string]bool, error)
	AddRelation(ctx context.Context, relation, entityID string) error
	RemoveRelation(ctx context.Context, relation, entityID string) error
}

// RegistrationClient is the portal surface for event registrations.
type RegistrationClient interface {
	FindRegistration(ctx context.Context, eventID string) (*remote.Registration, error)
	Register(ctx context.Context, eventID string) (*remote.Registration, error)
	CancelRegistration(ctx context.Context, registrationID string) error
}

// Bookmarks is the Mutator for event bookmarks.
type Bookmarks struct {
	client RelationClient
}

// NewBookmarks creates a bookmark mutator.
func NewBookmarks(client RelationClient) *Bookmarks {
	return &Bookmarks{client: client}
}

const bookmarksRelation = "bookmarks"

// Check implements Mutator.
func (b *Bookmarks) Check(ctx context.Context, entityID string) (bool, error) {
	return b.client.CheckRelation(ctx, bookmarksRelation, entityID)
}

// CheckMany implements BatchChecker.
func (b *Bookmarks) CheckMany(ctx context.Context, entityIDs []string) (map[string]bool, error) {
	return b.client.CheckRelations(ctx, bookmarksRelation, entityIDs)
}

// Add implements Mutator.
func (b *Bookmarks) Add(ctx context.Context, entityID string) error {
	return b.client.AddRelation(ctx, bookmarksRelation, entityID)
}

// Remove implements Mutator.
func (b *Bookmarks) Remove(ctx context.Context, entityID string) error {
	return b.client.RemoveRelation(ctx, bookmarksRelation, entityID)
}

// Registrations is the Mutator for event registrations. Cancelling needs the
// registration id, so ids learnt from checks and registrations are remembered
// per event.
type Registrations struct {
	client RegistrationClient

	mu  sync.Mutex
	ids map[string]string
}

// NewRegistrations creates a registration mutator.
func NewRegistrations(client RegistrationClient) *Registrations {
	return &Registrations{
		client: client,
		ids:    make(map[string]string),
	}
}

// Check implements Mutator.
func (r *Registrations) Check(ctx context.Context, eventID string) (bool, error) {
	reg, err := r.client.FindRegistration(ctx, eventID)
	if err != nil {
		return false, err
	}
	if reg == nil {
		r.forget(eventID)
		return false, nil
	}
	r.remember(eventID, reg.ID)
	return true, nil
}

// Add implements Mutator.
func (r *Registrations) Add(ctx context.Context, eventID string) error {
	reg, err := r.client.Register(ctx, eventID)
	if err != nil {
		return err
	}
	if reg != nil && reg.ID != "" {
		r.remember(eventID, reg.ID)
	}
	return nil
}

// Remove implements Mutator.
func (r *Registrations) Remove(ctx context.Context, eventID string) error {
	id, ok := r.lookup(eventID)
	if !ok {
		reg, err := r.client.FindRegistration(ctx, eventID)
		if err != nil {
			return err
		}
		if reg == nil {
			// Already gone on the server; the desired end state holds.
			return nil
		}
		id = reg.ID
	}

	if err := r.client.CancelRegistration(ctx, id); err != nil {
		return err
	}
	r.forget(eventID)
	return nil
}

// RegistrationID returns the remembered registration id for an event.
func (r *Registrations) RegistrationID(eventID string) (string, bool) {
	return r.lookup(eventID)
}

func (r *Registrations) remember(eventID, registrationID string) {
	r.mu.Lock()
	r.ids[eventID] = registrationID
	r.mu.Unlock()
}

func (r *Registrations) forget(eventID string) {
	r.mu.Lock()
	delete(r.ids, eventID)
	r.mu.Unlock()
}

func (r *Registrations) lookup(eventID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[eventID]
	return id, ok
}
