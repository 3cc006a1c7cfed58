package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// ChangeRepository reads the session change audit trail.
// Inserts happen inside SessionRepository.ApplyRefresh.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository constructs the repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// ListSince returns change records detected at or after since, newest first.
func (r *ChangeRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, session_id, kind, old_spots, new_spots, detected_at
FROM session_changes WHERE detected_at >= $1
ORDER BY detected_at DESC LIMIT $2`
	var records []models.ChangeRecord
	if err := r.db.SelectContext(ctx, &records, query, since, limit); err != nil {
		return nil, fmt.Errorf("list session changes: %w", err)
	}
	return records, nil
}

// LatestChange pairs an active session with the most recent change recorded for it.
type LatestChange struct {
	models.Session
	ChangeKind     models.ChangeKind `db:"change_kind"`
	ChangeOldSpots *int              `db:"change_old_spots"`
	ChangeNewSpots *int              `db:"change_new_spots"`
	ChangedAt      time.Time         `db:"change_detected_at"`
}

// ListLatestChanges returns, for every active session changed at or after since,
// the session as stored now together with its most recent change record.
func (r *ChangeRepository) ListLatestChanges(ctx context.Context, since time.Time) ([]LatestChange, error) {
	const query = `SELECT DISTINCT ON (c.session_id)
       s.id, s.name, s.session_date, s.start_time, s.end_time, s.level, s.side, s.total_spots,
       s.available_spots, s.booking_url, s.active, s.first_seen_at, s.updated_at,
       c.kind AS change_kind, c.old_spots AS change_old_spots, c.new_spots AS change_new_spots,
       c.detected_at AS change_detected_at
FROM session_changes c
JOIN sessions s ON s.id = c.session_id
WHERE c.detected_at >= $1 AND s.active = TRUE
ORDER BY c.session_id, c.detected_at DESC`
	var latest []LatestChange
	if err := r.db.SelectContext(ctx, &latest, query, since); err != nil {
		return nil, fmt.Errorf("list latest session changes: %w", err)
	}
	return latest, nil
}
