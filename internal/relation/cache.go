package relation

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultSeedConcurrency = 8

// Cache reconciles a controller with the portal's view of its relations.
type Cache struct {
	controller  *Controller
	concurrency int
}

// NewCache creates a reconciliation cache that seeds controller. Individual
// checks run at most concurrency at a time.
func NewCache(controller *Controller, concurrency int) *Cache {
	if concurrency <= 0 {
		concurrency = defaultSeedConcurrency
	}
	return &Cache{controller: controller, concurrency: concurrency}
}

// Seed fetches the current relation for each entity and records it in the
// controller. A failed check seeds a new entity as Absent so that one
// unreachable entity never blocks the rest of the list; an entity the
// controller already holds keeps its state. Entities that were pending or
// were toggled while their check ran keep the toggle's outcome.
//
// The returned map holds the displayed boolean for every requested entity.
// The only error is ErrClosed.
func (c *Cache) Seed(ctx context.Context, entityIDs []string) (map[string]bool, error) {
	ids := dedupe(entityIDs)
	marks := c.controller.marks(ids)
	found := c.check(ctx, ids)

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		present, known := found[id]
		m := marks[id]
		state, err := c.controller.reconcile(id, present, known, &m)
		if err != nil {
			return nil, err
		}
		out[id] = state.Displayed()
	}
	return out, nil
}

// check returns the server's answer for every id whose check succeeded.
func (c *Cache) check(ctx context.Context, ids []string) map[string]bool {
	kind := c.controller.Kind()
	mutator := c.controller.Mutator()

	if batch, ok := mutator.(BatchChecker); ok && len(ids) > 0 {
		results, err := batch.CheckMany(ctx, ids)
		if err != nil {
			log.Printf("Batch %s check for %d entities failed: %v", kind, len(ids), err)
			return map[string]bool{}
		}
		// Ids missing from a successful batch are not related.
		out := make(map[string]bool, len(ids))
		for _, id := range ids {
			out[id] = results[id]
		}
		return out
	}

	var mu sync.Mutex
	results := make(map[string]bool, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			present, err := mutator.Check(ctx, id)
			if err != nil {
				log.Printf("%s check for %s failed: %v", kind, id, err)
				return nil
			}
			mu.Lock()
			results[id] = present
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
