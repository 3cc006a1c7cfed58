package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

const subscriberColumns = `id, chat_id, display_name, enabled, min_spots, levels, sides, days, time_windows, lead_times, digest, created_at, updated_at`

// SubscriberRepository reads subscriber preferences. Writes belong to the setup flow.
type SubscriberRepository struct {
	db *sqlx.DB
}

// NewSubscriberRepository constructs the repository.
func NewSubscriberRepository(db *sqlx.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// ListEnabled returns every subscriber with alerts switched on.
func (r *SubscriberRepository) ListEnabled(ctx context.Context) ([]models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE enabled = TRUE ORDER BY created_at ASC`
	var subscribers []models.Subscriber
	if err := r.db.SelectContext(ctx, &subscribers, query); err != nil {
		return nil, fmt.Errorf("list enabled subscribers: %w", err)
	}
	return subscribers, nil
}

// ListByDigest returns enabled subscribers opted into the given digest type.
func (r *SubscriberRepository) ListByDigest(ctx context.Context, digestType models.DigestType) ([]models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers
WHERE enabled = TRUE AND digest IN ($1, $2) ORDER BY created_at ASC`
	var subscribers []models.Subscriber
	if err := r.db.SelectContext(ctx, &subscribers, query, string(digestType), string(models.DigestBoth)); err != nil {
		return nil, fmt.Errorf("list %s digest subscribers: %w", digestType, err)
	}
	return subscribers, nil
}
