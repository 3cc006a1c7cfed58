package dto

import "time"

// AcquiredSession is one upstream schedule entry.
type AcquiredSession struct {
	Name           string `json:"name" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime        string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Level          string `json:"level" validate:"required"`
	Side           string `json:"side" validate:"omitempty,oneof=L R"`
	TotalSpots     *int   `json:"totalSpots" validate:"omitempty,min=0"`
	AvailableSpots *int   `json:"availableSpots" validate:"omitempty,min=0"`
	BookingURL     string `json:"bookingUrl" validate:"omitempty,url"`
}

// AcquisitionRequest is a fresh snapshot covering every date in [From, To].
// Entries are validated one by one so a malformed entry only drops itself.
type AcquisitionRequest struct {
	From     string            `json:"from" validate:"required,datetime=2006-01-02"`
	To       string            `json:"to" validate:"required,datetime=2006-01-02"`
	Sessions []AcquiredSession `json:"sessions"`
}

// DispatchSummary aggregates per-candidate outcomes.
type DispatchSummary struct {
	Attempted   int `json:"attempted"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	Duplicates  int `json:"duplicates"`
	Unprocessed int `json:"unprocessed"`
}

// ChangeSummary reports what a refresh cycle detected.
type ChangeSummary struct {
	Received          int `json:"received"`
	Skipped           int `json:"skipped"`
	New               int `json:"new"`
	CapacityIncreased int `json:"capacityIncreased"`
	CapacityDecreased int `json:"capacityDecreased"`
	Cancelled         int `json:"cancelled"`
	Promoted          int `json:"promoted"`
	// Pending counts earlier transitions alerted again because their delivery had not completed.
	Pending int `json:"pending"`
}

// RunSummary is returned to the trigger caller after every invocation.
type RunSummary struct {
	Trigger   string    `json:"trigger"`
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	DispatchSummary
	Changes *ChangeSummary `json:"changes,omitempty"`
}
