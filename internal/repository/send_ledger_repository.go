package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// SendLedgerRepository is the append-only record of delivered reminders.
type SendLedgerRepository struct {
	db *sqlx.DB
}

// NewSendLedgerRepository constructs the repository.
func NewSendLedgerRepository(db *sqlx.DB) *SendLedgerRepository {
	return &SendLedgerRepository{db: db}
}

// AlreadySent reports whether the triple has been delivered.
func (r *SendLedgerRepository) AlreadySent(ctx context.Context, subscriberID, sessionID string, lead models.LeadTime) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM send_ledger WHERE subscriber_id = $1 AND session_id = $2 AND lead_time = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, subscriberID, sessionID, string(lead)); err != nil {
		return false, fmt.Errorf("check send ledger: %w", err)
	}
	return exists, nil
}

// SentKeys loads every ledger triple recorded for the given sessions.
func (r *SendLedgerRepository) SentKeys(ctx context.Context, sessionIDs []string) (map[models.LedgerKey]struct{}, error) {
	keys := make(map[models.LedgerKey]struct{})
	if len(sessionIDs) == 0 {
		return keys, nil
	}
	const query = `SELECT id, subscriber_id, session_id, lead_time, sent_at FROM send_ledger WHERE session_id = ANY($1)`
	var records []models.SendRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(sessionIDs)); err != nil {
		return nil, fmt.Errorf("list send ledger: %w", err)
	}
	for _, record := range records {
		keys[record.Key()] = struct{}{}
	}
	return keys, nil
}

// RecordSent inserts the triple. It returns false when another invocation
// already recorded it; that is not an error.
func (r *SendLedgerRepository) RecordSent(ctx context.Context, record *models.SendRecord) (bool, error) {
	const query = `INSERT INTO send_ledger (id, subscriber_id, session_id, lead_time, sent_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (subscriber_id, session_id, lead_time) DO NOTHING
RETURNING id`
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	var id string
	err := r.db.QueryRowxContext(ctx, query, record.ID, record.SubscriberID, record.SessionID, string(record.LeadTime), record.SentAt).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("record send: %w", err)
	}
}
