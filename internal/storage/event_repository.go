package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/storage/models"
)

// EventRepository provides access to cached event windows.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{BaseRepository: NewBaseRepository(db)}
}

const eventColumns = `id, source, title, venue, date, start_time, end_time, fetched_at`

// ReplaceSource swaps every row of source for events in one transaction.
// Events keep their ids; FetchedAt is stamped with the current time.
func (r *EventRepository) ReplaceSource(ctx context.Context, source string, events []models.Event) error {
	now := r.Now()
	return r.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE source = ?", source); err != nil {
			return fmt.Errorf("clearing events for %s: %w", source, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				source = excluded.source, title = excluded.title, venue = excluded.venue,
				date = excluded.date, start_time = excluded.start_time,
				end_time = excluded.end_time, fetched_at = excluded.fetched_at
		`)
		if err != nil {
			return fmt.Errorf("preparing event insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx,
				e.ID, source, e.Title, e.Venue, e.Date, e.StartTime, e.EndTime, now,
			); err != nil {
				return fmt.Errorf("inserting event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// List returns every cached event ordered by start instant, then title.
// Events whose window cannot be parsed come last.
func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		ORDER BY date, title
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByStart(events)
	return events, nil
}

// sortByStart orders events chronologically. Clock strings such as
// "9:00 AM" and "10:00 AM" do not sort as text.
func sortByStart(events []models.Event) {
	starts := make(map[string]time.Time, len(events))
	for _, e := range events {
		if start, _, err := lifecycle.Bounds(e.Window(), time.UTC); err == nil {
			starts[e.ID] = start
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		si, iok := starts[events[i].ID]
		sj, jok := starts[events[j].ID]
		switch {
		case iok && jok && !si.Equal(sj):
			return si.Before(sj)
		case iok != jok:
			return iok
		}
		return events[i].Title < events[j].Title
	})
}

// GetByID returns one event, or nil when it is not cached.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return e, nil
}

// Count returns the number of cached events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*models.Event, error) {
	var e models.Event
	if err := s.Scan(
		&e.ID, &e.Source, &e.Title, &e.Venue,
		&e.Date, &e.StartTime, &e.EndTime, &e.FetchedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
