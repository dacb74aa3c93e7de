package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/websocket"
)

// Scheduler runs periodic catalog syncs and phase evaluation.
type Scheduler struct {
	cron        *cron.Cron
	syncService *SyncService
	tracker     *lifecycle.Tracker
	events      *storage.EventRepository
	broadcaster *websocket.EventBroadcaster
	now         func() time.Time

	mu       sync.Mutex
	syncJob  cron.EntryID
	tickJob  cron.EntryID
	syncing  bool
	interval Intervals
}

// Intervals are the scheduler's periods.
type Intervals struct {
	Sync      time.Duration
	PhaseTick time.Duration
}

func (i *Intervals) normalize() {
	if i.Sync < time.Minute {
		i.Sync = 10 * time.Minute
	}
	if i.PhaseTick < time.Second {
		i.PhaseTick = 30 * time.Second
	}
}

// NewScheduler creates a scheduler. hub may be nil.
func NewScheduler(
	syncService *SyncService,
	tracker *lifecycle.Tracker,
	events *storage.EventRepository,
	hub *websocket.Hub,
	intervals Intervals,
) *Scheduler {
	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}
	intervals.normalize()

	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		syncService: syncService,
		tracker:     tracker,
		events:      events,
		broadcaster: broadcaster,
		now:         time.Now,
		interval:    intervals,
	}
}

// Start loads the cached catalog into the tracker, schedules the jobs and
// triggers an initial sync.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Println("Starting catalog scheduler...")

	if err := s.syncService.RefreshTracker(ctx); err != nil {
		return err
	}
	// Record current phases without announcing them.
	s.tracker.Evaluate(s.now())

	if err := s.Reschedule(s.interval); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Catalog scheduler started: sync every %s, phase tick every %s", s.interval.Sync, s.interval.PhaseTick)

	s.TriggerSync()
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	log.Println("Stopping catalog scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Catalog scheduler stopped")
}

// Reschedule replaces the sync and phase jobs with new periods.
func (s *Scheduler) Reschedule(intervals Intervals) error {
	intervals.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncJob != 0 {
		s.cron.Remove(s.syncJob)
	}
	if s.tickJob != 0 {
		s.cron.Remove(s.tickJob)
	}

	syncJob, err := s.cron.AddFunc(everySpec(intervals.Sync), func() {
		s.runSync(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling catalog sync: %w", err)
	}
	tickJob, err := s.cron.AddFunc(everySpec(intervals.PhaseTick), s.Tick)
	if err != nil {
		s.cron.Remove(syncJob)
		return fmt.Errorf("scheduling phase tick: %w", err)
	}

	s.syncJob, s.tickJob = syncJob, tickJob
	s.interval = intervals
	return nil
}

// Intervals returns the current periods.
func (s *Scheduler) Intervals() Intervals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// TriggerSync starts an immediate sync in the background. It reports false
// when a sync is already running.
func (s *Scheduler) TriggerSync() bool {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	go s.runSync(context.Background())
	return true
}

// NextSync returns when the next scheduled sync runs.
func (s *Scheduler) NextSync() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncJob == 0 {
		return nil
	}
	entry := s.cron.Entry(s.syncJob)
	if entry.Next.IsZero() {
		return nil
	}
	return &entry.Next
}

func (s *Scheduler) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	results, err := s.syncService.SyncAll(ctx)
	for _, r := range results {
		if s.broadcaster == nil {
			break
		}
		if r.Error != nil {
			s.broadcaster.BroadcastCatalogSyncError(r.Source, r.Error)
		} else {
			s.broadcaster.BroadcastCatalogSyncCompleted(r.Source, r.Events, r.SyncedAt)
		}
	}
	if err != nil {
		log.Printf("Catalog refresh failed: %v", err)
		return
	}

	// Windows may have moved; announce any resulting phase changes now
	// rather than at the next tick.
	s.Tick()
}

// Tick re-evaluates every tracked event and broadcasts phase changes.
func (s *Scheduler) Tick() {
	changes := s.tracker.Evaluate(s.now())
	if len(changes) == 0 || s.broadcaster == nil {
		return
	}

	for _, ch := range changes {
		title := ""
		if s.events != nil {
			if e, err := s.events.GetByID(context.Background(), ch.EventID); err == nil && e != nil {
				title = e.Title
			}
		}
		log.Printf("Event %s is now %s", ch.EventID, ch.Current)
		s.broadcaster.BroadcastPhaseChange(ch, title)
	}
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
