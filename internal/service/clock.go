package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// Clock expresses instants in the business timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// LoadClock builds a wall clock for the named IANA timezone.
func LoadClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return NewClock(loc, nil), nil
}

// NewClock builds a clock; a nil now func uses time.Now.
func NewClock(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Location returns the business timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the business timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Day truncates t to its business-calendar date, at midnight in the business timezone.
func (c *Clock) Day(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// TargetInstants maps every scheduled lead time to now plus its offset.
// Offsets are added to the wall-clock fields in the business timezone, so a
// target across a DST change keeps the intended civil time. A target that falls
// in a spring-forward gap moves forward by the length of the gap.
func (c *Clock) TargetInstants(now time.Time) map[models.LeadTime]time.Time {
	now = now.In(c.loc)
	targets := make(map[models.LeadTime]time.Time, len(models.ScheduledLeadTimes))
	for _, lt := range models.ScheduledLeadTimes {
		targets[lt] = addLeadTime(now, lt)
	}
	return targets
}

// Windows returns the notification window of every scheduled lead time.
func (c *Clock) Windows(now time.Time, tolerance time.Duration) map[models.LeadTime]Window {
	targets := c.TargetInstants(now)
	windows := make(map[models.LeadTime]Window, len(targets))
	for lt, target := range targets {
		windows[lt] = NewWindow(target, tolerance)
	}
	return windows
}

func addLeadTime(now time.Time, lt models.LeadTime) time.Time {
	switch lt {
	case models.LeadTimeOneWeek:
		return now.AddDate(0, 0, 7)
	case models.LeadTime48Hours:
		return now.AddDate(0, 0, 2)
	case models.LeadTime24Hours:
		return now.AddDate(0, 0, 1)
	case models.LeadTime12Hours:
		return addWallHours(now, 12)
	case models.LeadTime2Hours:
		return addWallHours(now, 2)
	default:
		return now
	}
}

func addWallHours(t time.Time, hours int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour()+hours, t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Window is the closed interval [Start, End] around a target instant.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [target-tolerance, target+tolerance].
func NewWindow(target time.Time, tolerance time.Duration) Window {
	return Window{Start: target.Add(-tolerance), End: target.Add(tolerance)}
}

// Contains reports whether t lies in the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Span returns the smallest window covering every window in the map.
func Span(windows map[models.LeadTime]Window) Window {
	var span Window
	first := true
	for _, w := range windows {
		if first || w.Start.Before(span.Start) {
			span.Start = w.Start
		}
		if first || w.End.After(span.End) {
			span.End = w.End
		}
		first = false
	}
	return span
}
