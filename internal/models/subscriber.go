package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// LeadTime tags the offset before a session start at which a reminder fires.
type LeadTime string

const (
	LeadTimeOneWeek LeadTime = "1w"
	LeadTime48Hours LeadTime = "48h"
	LeadTime24Hours LeadTime = "24h"
	LeadTime12Hours LeadTime = "12h"
	LeadTime2Hours  LeadTime = "2h"

	// Synthetic tags used by change-triggered alerts.
	LeadTimeBecameAvailable LeadTime = "became-available"
	LeadTimeFillingFast     LeadTime = "filling-fast"
)

// ScheduledLeadTimes lists the subscriber-selectable offsets in descending order.
var ScheduledLeadTimes = []LeadTime{
	LeadTimeOneWeek,
	LeadTime48Hours,
	LeadTime24Hours,
	LeadTime12Hours,
	LeadTime2Hours,
}

// Scheduled reports whether the tag is one of the subscriber-selectable offsets.
func (l LeadTime) Scheduled() bool {
	for _, lt := range ScheduledLeadTimes {
		if lt == l {
			return true
		}
	}
	return false
}

// Side values; sessions without a side are stored as NULL.
const (
	SideLeft  = "L"
	SideRight = "R"
	SideAny   = "any"
)

// DigestType identifies one of the two daily summaries.
type DigestType string

const (
	DigestMorning DigestType = "morning"
	DigestEvening DigestType = "evening"
)

// Valid reports whether the digest type is supported.
func (d DigestType) Valid() bool {
	return d == DigestMorning || d == DigestEvening
}

// DigestPreference captures which digests a subscriber wants.
type DigestPreference string

const (
	DigestNone DigestPreference = "none"
	DigestAM   DigestPreference = "morning"
	DigestPM   DigestPreference = "evening"
	DigestBoth DigestPreference = "both"
)

// Includes reports whether the preference opts into the given digest type.
func (p DigestPreference) Includes(t DigestType) bool {
	switch p {
	case DigestBoth:
		return true
	case DigestAM:
		return t == DigestMorning
	case DigestPM:
		return t == DigestEvening
	default:
		return false
	}
}

var weekdayTags = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayTag returns the lower-case three letter tag stored in subscribers.days.
func WeekdayTag(d time.Weekday) string {
	return weekdayTags[d]
}

// ParseClock converts an "HH:MM" wall-clock value into minutes after midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return hour*60 + minute, nil
}

// TimeWindow is a half-open [Start, End) wall-clock interval.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether the clock value falls inside the window.
// Malformed windows contain nothing.
func (w TimeWindow) Contains(clock string) bool {
	at, err := ParseClock(clock)
	if err != nil {
		return false
	}
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	return at >= start && at < end
}

// TimeWindows persists as JSONB.
type TimeWindows []TimeWindow

// Value marshals windows to JSON for persistence.
func (w TimeWindows) Value() (driver.Value, error) {
	if w == nil {
		w = TimeWindows{}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Scan decodes JSONB into windows.
func (w *TimeWindows) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("unsupported time_windows type %T", src)
	}
}

// Subscriber is a read-only view of a user's alert preferences.
// An empty preference set means no restriction, except Levels where empty matches nothing.
type Subscriber struct {
	ID          string           `db:"id" json:"id"`
	ChatID      int64            `db:"chat_id" json:"chat_id"`
	DisplayName string           `db:"display_name" json:"display_name"`
	Enabled     bool             `db:"enabled" json:"enabled"`
	MinSpots    int              `db:"min_spots" json:"min_spots"`
	Levels      pq.StringArray   `db:"levels" json:"levels"`
	Sides       pq.StringArray   `db:"sides" json:"sides"`
	Days        pq.StringArray   `db:"days" json:"days"`
	TimeWindows TimeWindows      `db:"time_windows" json:"time_windows"`
	LeadTimes   pq.StringArray   `db:"lead_times" json:"lead_times"`
	Digest      DigestPreference `db:"digest" json:"digest"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// WantsLeadTime reports whether the subscriber enabled the given offset.
func (s Subscriber) WantsLeadTime(lt LeadTime) bool {
	for _, pref := range s.LeadTimes {
		if LeadTime(pref) == lt {
			return true
		}
	}
	return false
}
