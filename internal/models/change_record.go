package models

import "time"

// ChangeKind classifies a transition detected between two acquisitions.
type ChangeKind string

const (
	ChangeNew               ChangeKind = "new"
	ChangeCapacityIncreased ChangeKind = "capacity_increased"
	ChangeCapacityDecreased ChangeKind = "capacity_decreased"
	ChangeCancelled         ChangeKind = "cancelled"
)

// ChangeRecord is an append-only audit entry.
type ChangeRecord struct {
	ID         string     `db:"id" json:"id"`
	SessionID  string     `db:"session_id" json:"session_id"`
	Kind       ChangeKind `db:"kind" json:"kind"`
	OldSpots   *int       `db:"old_spots" json:"old_spots,omitempty"`
	NewSpots   *int       `db:"new_spots" json:"new_spots,omitempty"`
	DetectedAt time.Time  `db:"detected_at" json:"detected_at"`
}
