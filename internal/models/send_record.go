package models

import "time"

// SendRecord is the durable fact that a reminder was delivered.
type SendRecord struct {
	ID           string    `db:"id" json:"id"`
	SubscriberID string    `db:"subscriber_id" json:"subscriber_id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	LeadTime     LeadTime  `db:"lead_time" json:"lead_time"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}

// Key returns the ledger identity of the record.
func (r SendRecord) Key() LedgerKey {
	return LedgerKey{SubscriberID: r.SubscriberID, SessionID: r.SessionID, LeadTime: r.LeadTime}
}

// LedgerKey is the (subscriber, session, lead time) triple delivered at most once.
type LedgerKey struct {
	SubscriberID string
	SessionID    string
	LeadTime     LeadTime
}
