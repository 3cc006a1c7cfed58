package service

import (
	"strings"
	"time"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// Matches is the coarse eligibility predicate shared by reminders, digests
// and change alerts. Empty preference sets never exclude, except levels.
func Matches(session models.Session, sub models.Subscriber) bool {
	if !sub.Enabled {
		return false
	}
	if !containsFold(sub.Levels, session.Level) {
		return false
	}
	if !sideMatches(session, sub.Sides) {
		return false
	}
	if !dayMatches(session, sub.Days) {
		return false
	}
	if !timeMatches(session, sub.TimeWindows) {
		return false
	}
	if session.AvailableSpots != nil && *session.AvailableSpots < sub.MinSpots {
		return false
	}
	return true
}

// MatchingLeadTimes intersects the subscriber's lead-time preferences with the
// tags whose window currently contains the session start.
func MatchingLeadTimes(startsAt time.Time, sub models.Subscriber, windows map[models.LeadTime]Window) []models.LeadTime {
	var matched []models.LeadTime
	for _, lt := range models.ScheduledLeadTimes {
		window, ok := windows[lt]
		if !ok || !sub.WantsLeadTime(lt) {
			continue
		}
		if window.Contains(startsAt) {
			matched = append(matched, lt)
		}
	}
	return matched
}

func sideMatches(session models.Session, sides []string) bool {
	side := strings.TrimSpace(session.SideLabel())
	if side == "" || len(sides) == 0 {
		return true
	}
	return containsFold(sides, models.SideAny) || containsFold(sides, side)
}

func dayMatches(session models.Session, days []string) bool {
	if len(days) == 0 {
		return true
	}
	y, m, d := session.SessionDate.Date()
	weekday := time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Weekday()
	return containsFold(days, models.WeekdayTag(weekday))
}

func timeMatches(session models.Session, windows models.TimeWindows) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(session.StartTime) {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
