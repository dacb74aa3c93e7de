package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// BaseRepository holds what every repository shares.
type BaseRepository struct {
	db *DB
}

// NewBaseRepository creates a base repository over db.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Now returns the current time in UTC for database timestamps.
func (r *BaseRepository) Now() time.Time {
	return time.Now().UTC()
}

// Transaction runs fn in a database transaction.
func (r *BaseRepository) Transaction(fn func(tx *sql.Tx) error) error {
	return r.db.Transaction(fn)
}

// GenerateID returns a random identifier for rows, views and form sessions.
func GenerateID() string {
	return uuid.NewString()
}
