package models

import "time"

// DigestDelivery marks a digest as sent for one subscriber, type and business day.
type DigestDelivery struct {
	ID           string     `db:"id" json:"id"`
	SubscriberID string     `db:"subscriber_id" json:"subscriber_id"`
	DigestType   DigestType `db:"digest_type" json:"digest_type"`
	DigestDate   time.Time  `db:"digest_date" json:"digest_date"`
	SessionCount int        `db:"session_count" json:"session_count"`
	SentAt       time.Time  `db:"sent_at" json:"sent_at"`
}
