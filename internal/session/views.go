// Package session tracks the views and forms a browser has mounted. Deleting
// one is the unmount: its controller or form is closed and late results are
// dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/storage"
)

// ErrNotFound is returned for an unknown view or form id.
var ErrNotFound = errors.New("session not found")

// View is one mounted list or detail screen showing one relation kind.
type View struct {
	ID         string
	Controller *relation.Controller
	Cache      *relation.Cache

	unsubscribe func()
}

// ViewObserver receives every relation change of every view.
type ViewObserver func(viewID string, change relation.Change)

// Views is the registry of mounted views.
type Views struct {
	mutators    map[relation.Kind]relation.Mutator
	concurrency int
	observer    ViewObserver

	mu    sync.RWMutex
	views map[string]*View
}

// NewViews creates a registry. mutators supplies the remote side per kind.
func NewViews(mutators map[relation.Kind]relation.Mutator, concurrency int, observer ViewObserver) *Views {
	return &Views{
		mutators:    mutators,
		concurrency: concurrency,
		observer:    observer,
		views:       make(map[string]*View),
	}
}

// Open mounts a new view for kind and reconciles entityIDs against the
// portal. It returns the view and the displayed value per entity.
func (v *Views) Open(ctx context.Context, kind relation.Kind, entityIDs []string) (*View, map[string]bool, error) {
	mutator, ok := v.mutators[kind]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported relation %q", kind)
	}

	view := &View{ID: storage.GenerateID()}
	view.Controller = relation.NewController(kind, mutator)
	view.Cache = relation.NewCache(view.Controller, v.concurrency)
	if v.observer != nil {
		id := view.ID
		view.unsubscribe = view.Controller.Subscribe(func(ch relation.Change) {
			v.observer(id, ch)
		})
	}

	v.mu.Lock()
	v.views[view.ID] = view
	v.mu.Unlock()

	states, err := view.Cache.Seed(ctx, entityIDs)
	if err != nil {
		v.Close(view.ID)
		return nil, nil, err
	}
	log.Printf("Opened %s view %s with %d entities", kind, view.ID, len(states))
	return view, states, nil
}

// Get returns a mounted view.
func (v *Views) Get(id string) (*View, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	view, ok := v.views[id]
	if !ok {
		return nil, ErrNotFound
	}
	return view, nil
}

// Close unmounts a view. In-flight toggles resolve into nothing.
func (v *Views) Close(id string) error {
	v.mu.Lock()
	view, ok := v.views[id]
	delete(v.views, id)
	v.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if view.unsubscribe != nil {
		view.unsubscribe()
	}
	view.Controller.Close()
	return nil
}

// CloseAll unmounts every view.
func (v *Views) CloseAll() {
	for _, id := range v.IDs() {
		v.Close(id)
	}
}

// IDs returns the ids of mounted views in sorted order.
func (v *Views) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]string, 0, len(v.views))
	for id := range v.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of mounted views.
func (v *Views) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.views)
}
