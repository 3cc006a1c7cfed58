package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the civil date format used for session dates and digest days.
const DateLayout = "2006-01-02"

var sessionNamespace = uuid.MustParse("6f1c5a0e-4d7b-5c39-9a59-2b8e0f5d7c11")

// SessionID derives the stable identity of an upstream session entry.
// Re-acquiring the same (date, start, name) always yields the same id.
func SessionID(date time.Time, start, name string) string {
	key := strings.Join([]string{
		date.Format(DateLayout),
		strings.TrimSpace(start),
		strings.ToLower(strings.TrimSpace(name)),
	}, "|")
	return uuid.NewSHA1(sessionNamespace, []byte(key)).String()
}

// Session is one bookable wave pool slot.
type Session struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	SessionDate    time.Time `db:"session_date" json:"session_date"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        *string   `db:"end_time" json:"end_time,omitempty"`
	Level          string    `db:"level" json:"level"`
	Side           *string   `db:"side" json:"side,omitempty"`
	TotalSpots     *int      `db:"total_spots" json:"total_spots,omitempty"`
	AvailableSpots *int      `db:"available_spots" json:"available_spots,omitempty"`
	BookingURL     string    `db:"booking_url" json:"booking_url"`
	Active         bool      `db:"active" json:"active"`
	FirstSeenAt    time.Time `db:"first_seen_at" json:"first_seen_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DateKey returns the civil date of the session.
func (s Session) DateKey() string {
	return s.SessionDate.Format(DateLayout)
}

// StartsAt combines the civil date and start time in the given location.
func (s Session) StartsAt(loc *time.Location) (time.Time, error) {
	minutes, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %s: %w", s.ID, err)
	}
	y, m, d := s.SessionDate.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, loc), nil
}

// SideLabel returns the side tag or an empty string when unknown.
func (s Session) SideLabel() string {
	if s.Side == nil {
		return ""
	}
	return *s.Side
}
