package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// DigestDeliveryRepository tracks which digests went out per business day.
type DigestDeliveryRepository struct {
	db *sqlx.DB
}

// NewDigestDeliveryRepository constructs the repository.
func NewDigestDeliveryRepository(db *sqlx.DB) *DigestDeliveryRepository {
	return &DigestDeliveryRepository{db: db}
}

// DeliveredSubscribers returns the subscribers already served for the digest identity.
func (r *DigestDeliveryRepository) DeliveredSubscribers(ctx context.Context, digestType models.DigestType, day time.Time) (map[string]struct{}, error) {
	const query = `SELECT subscriber_id FROM digest_deliveries WHERE digest_type = $1 AND digest_date = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, string(digestType), dateArg(day)); err != nil {
		return nil, fmt.Errorf("list digest deliveries: %w", err)
	}
	delivered := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		delivered[id] = struct{}{}
	}
	return delivered, nil
}

// Record marks the digest as delivered; false means it was already recorded.
func (r *DigestDeliveryRepository) Record(ctx context.Context, delivery *models.DigestDelivery) (bool, error) {
	const query = `INSERT INTO digest_deliveries (id, subscriber_id, digest_type, digest_date, session_count, sent_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (subscriber_id, digest_type, digest_date) DO NOTHING
RETURNING id`
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.SentAt.IsZero() {
		delivery.SentAt = time.Now().UTC()
	}

	var id string
	err := r.db.QueryRowxContext(ctx, query,
		delivery.ID,
		delivery.SubscriberID,
		string(delivery.DigestType),
		dateArg(delivery.DigestDate),
		delivery.SessionCount,
		delivery.SentAt,
	).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("record digest delivery: %w", err)
	}
}
