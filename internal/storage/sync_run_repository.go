package storage

import (
	"context"
	"fmt"

	"github.com/campus-portal/companion/internal/storage/models"
)

// SyncRunRepository records catalog sync attempts.
type SyncRunRepository struct {
	BaseRepository
}

// NewSyncRunRepository creates a new sync run repository.
func NewSyncRunRepository(db *DB) *SyncRunRepository {
	return &SyncRunRepository{BaseRepository: NewBaseRepository(db)}
}

// Record inserts a finished run, assigning its id.
func (r *SyncRunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	run.ID = GenerateID()
	if run.FinishedAt.IsZero() {
		run.FinishedAt = r.Now()
	}
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO sync_runs (id, source, status, events, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Status, run.Events, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// Latest returns the most recent run for each source.
func (r *SyncRunRepository) Latest(ctx context.Context) ([]models.SyncRun, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT s.id, s.source, s.status, s.events, s.error, s.started_at, s.finished_at
		FROM sync_runs s
		WHERE s.finished_at = (
			SELECT MAX(finished_at) FROM sync_runs WHERE source = s.source
		)
		ORDER BY s.source
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(
			&run.ID, &run.Source, &run.Status, &run.Events,
			&run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes all but the newest keep runs per source.
func (r *SyncRunRepository) Prune(ctx context.Context, keep int) error {
	_, err := r.DB().ExecContext(ctx, `
		DELETE FROM sync_runs WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source ORDER BY finished_at DESC) AS rn
				FROM sync_runs
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning sync runs: %w", err)
	}
	return nil
}
