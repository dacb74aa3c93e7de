package models

import "time"

// Sync run statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncRun records one catalog sync attempt for one source.
type SyncRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Events     int       `json:"events"`
	Error      *string   `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
