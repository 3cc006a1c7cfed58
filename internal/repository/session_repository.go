package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

const sessionColumns = `id, name, session_date, start_time, end_time, level, side, total_spots, available_spots, booking_url, active, first_seen_at, updated_at`

// RefreshBatch is everything one acquisition cycle writes.
type RefreshBatch struct {
	Upserts    []models.Session
	Deactivate []string
	Changes    []models.ChangeRecord
}

// SessionRepository persists acquired sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ListActiveBetween returns active sessions whose date falls in [from, to].
func (r *SessionRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
WHERE active = TRUE AND session_date BETWEEN $1 AND $2
ORDER BY session_date ASC, start_time ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, dateArg(from), dateArg(to)); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// refreshLockKey identifies the transaction-scoped advisory lock taken by every refresh.
const refreshLockKey int64 = 0x77617665

// SnapshotFunc turns the stored sessions of the refreshed dates into the batch to write.
type SnapshotFunc func(previous []models.Session) RefreshBatch

// ApplyRefresh runs one acquisition cycle for the dates [from, to] in a single
// transaction. Cycles are serialised by an advisory lock and the snapshot is read
// after taking it, so overlapping refreshes never record the same transition twice
// and a change record's new_spots always matches the persisted session.
func (r *SessionRepository) ApplyRefresh(ctx context.Context, from, to time.Time, plan SnapshotFunc) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refresh tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, refreshLockKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock refresh: %w", err)
	}

	snapshotQuery := `SELECT ` + sessionColumns + ` FROM sessions
WHERE session_date BETWEEN $1 AND $2
ORDER BY session_date ASC, start_time ASC`
	var previous []models.Session
	if err := tx.SelectContext(ctx, &previous, snapshotQuery, dateArg(from), dateArg(to)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("load session snapshot: %w", err)
	}

	batch := plan(previous)

	const upsertQuery = `INSERT INTO sessions (id, name, session_date, start_time, end_time, level, side, total_spots, available_spots, booking_url, active, first_seen_at, updated_at)
VALUES (:id, :name, :session_date, :start_time, :end_time, :level, :side, :total_spots, :available_spots, :booking_url, :active, :first_seen_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET end_time = EXCLUDED.end_time, level = EXCLUDED.level, side = EXCLUDED.side,
              total_spots = EXCLUDED.total_spots, available_spots = EXCLUDED.available_spots,
              booking_url = EXCLUDED.booking_url, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range batch.Upserts {
		session := &batch.Upserts[i]
		if session.FirstSeenAt.IsZero() {
			session.FirstSeenAt = now
		}
		session.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertQuery, session); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert session %s: %w", session.ID, err)
		}
	}

	if len(batch.Deactivate) > 0 {
		const deactivateQuery = `UPDATE sessions SET active = FALSE, updated_at = $2 WHERE id = ANY($1) AND active = TRUE`
		if _, err := tx.ExecContext(ctx, deactivateQuery, pq.Array(batch.Deactivate), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("deactivate sessions: %w", err)
		}
	}

	const changeQuery = `INSERT INTO session_changes (id, session_id, kind, old_spots, new_spots, detected_at)
VALUES (:id, :session_id, :kind, :old_spots, :new_spots, :detected_at)`
	for i := range batch.Changes {
		if _, err := tx.NamedExecContext(ctx, changeQuery, &batch.Changes[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert session change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh tx: %w", err)
	}
	return nil
}
