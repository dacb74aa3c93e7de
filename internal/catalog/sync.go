package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/remote"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/storage/models"
)

// Source produces the full set of event windows it publishes.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Event, error)
}

// EventLister is the portal call the portal source needs.
type EventLister interface {
	ListEvents(ctx context.Context) ([]remote.Event, error)
}

// PortalSource reads events from the portal API.
type PortalSource struct {
	client EventLister
}

// NewPortalSource creates a source over the portal client.
func NewPortalSource(client EventLister) *PortalSource {
	return &PortalSource{client: client}
}

// Name implements Source.
func (p *PortalSource) Name() string {
	return models.SourcePortal
}

// Fetch implements Source.
func (p *PortalSource) Fetch(ctx context.Context) ([]models.Event, error) {
	events, err := p.client.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			continue
		}
		out = append(out, models.Event{
			ID:        e.ID,
			Title:     e.Title,
			Venue:     e.Venue,
			Date:      e.Date,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
		})
	}
	return out, nil
}

// SyncResult is the outcome of syncing one source.
type SyncResult struct {
	Source   string    `json:"source"`
	Events   int       `json:"events"`
	Error    error     `json:"-"`
	SyncedAt time.Time `json:"synced_at"`
}

const maxConcurrentFetches = 4

// SyncService refreshes the cached catalog from its sources and keeps the
// phase tracker pointed at the cached windows.
type SyncService struct {
	events  *storage.EventRepository
	runs    *storage.SyncRunRepository
	tracker *lifecycle.Tracker
	sources []Source

	// Serialises syncs; a manual trigger during a scheduled run waits.
	mu sync.Mutex
}

// NewSyncService creates a sync service.
func NewSyncService(
	events *storage.EventRepository,
	runs *storage.SyncRunRepository,
	tracker *lifecycle.Tracker,
	sources ...Source,
) *SyncService {
	return &SyncService{
		events:  events,
		runs:    runs,
		tracker: tracker,
		sources: sources,
	}
}

// Sources returns the configured source names.
func (s *SyncService) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// SyncAll fetches every source. A source that fails keeps its previously
// cached rows; its error is reported in its result. The returned error is
// only for failures to refresh the tracker from the cache.
func (s *SyncService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]SyncResult, len(s.sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, src := range s.sources {
		g.Go(func() error {
			results[i] = s.syncSource(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.RefreshTracker(ctx); err != nil {
		return results, err
	}
	if err := s.runs.Prune(ctx, 50); err != nil {
		log.Printf("Failed to prune sync history: %v", err)
	}
	return results, nil
}

func (s *SyncService) syncSource(ctx context.Context, src Source) SyncResult {
	started := time.Now().UTC()
	result := SyncResult{Source: src.Name()}

	events, err := src.Fetch(ctx)
	if err == nil {
		err = s.events.ReplaceSource(ctx, src.Name(), events)
	}
	result.SyncedAt = time.Now().UTC()

	run := &models.SyncRun{
		Source:     src.Name(),
		Status:     models.SyncStatusSuccess,
		StartedAt:  started,
		FinishedAt: result.SyncedAt,
	}
	if err != nil {
		result.Error = fmt.Errorf("syncing %s: %w", src.Name(), err)
		msg := err.Error()
		run.Status = models.SyncStatusError
		run.Error = &msg
		log.Printf("Catalog sync failed for %s: %v", src.Name(), err)
	} else {
		result.Events = len(events)
		run.Events = len(events)
		log.Printf("Catalog sync completed for %s: %d events", src.Name(), len(events))
	}

	if err := s.runs.Record(ctx, run); err != nil {
		log.Printf("Failed to record sync run for %s: %v", src.Name(), err)
	}
	return result
}

// RefreshTracker installs every cached window in the tracker and drops
// windows that are no longer cached.
func (s *SyncService) RefreshTracker(ctx context.Context) error {
	events, err := s.events.List(ctx)
	if err != nil {
		return fmt.Errorf("listing cached events: %w", err)
	}
	keep := make(map[string]bool, len(events))
	for _, e := range events {
		s.tracker.Track(e.ID, e.Window())
		keep[e.ID] = true
	}
	s.tracker.Retain(keep)
	return nil
}
