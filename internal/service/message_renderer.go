package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

var leadHeadlines = map[models.LeadTime]string{
	models.LeadTimeOneWeek:         "Session in 1 week",
	models.LeadTime48Hours:         "Session in 48 hours",
	models.LeadTime24Hours:         "Session tomorrow",
	models.LeadTime12Hours:         "Session in 12 hours",
	models.LeadTime2Hours:          "Session in 2 hours",
	models.LeadTimeBecameAvailable: "Spots just opened up",
	models.LeadTimeFillingFast:     "Filling fast",
}

// MessageRenderer turns matched sessions into channel messages.
type MessageRenderer struct {
	loc      *time.Location
	lowWater int
}

// NewMessageRenderer builds a renderer; lowWater is the spot count at or below
// which the urgency marker is shown.
func NewMessageRenderer(loc *time.Location, lowWater int) *MessageRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageRenderer{loc: loc, lowWater: lowWater}
}

// Reminder renders a single-session alert with a booking button.
func (r *MessageRenderer) Reminder(c Candidate, weather *models.WeatherReport) models.OutboundMessage {
	headline, ok := leadHeadlines[c.LeadTime]
	if !ok {
		headline = "Session reminder"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌊 %s\n", headline)
	fmt.Fprintf(&b, "%s\n", c.Session.Name)
	fmt.Fprintf(&b, "📅 %s\n", r.when(c.Session))
	fmt.Fprintf(&b, "Level: %s\n", c.Session.Level)
	if side := sideName(c.Session.SideLabel()); side != "" {
		fmt.Fprintf(&b, "Side: %s\n", side)
	}
	fmt.Fprintf(&b, "Spots: %s\n", spotsLabel(c.Session.AvailableSpots))
	if r.urgent(c.Session.AvailableSpots) {
		fmt.Fprintf(&b, "🔥 Only %d left, book soon\n", *c.Session.AvailableSpots)
	}
	if section := weatherSection(weather); section != "" {
		b.WriteString("\n")
		b.WriteString(section)
	}

	msg := models.OutboundMessage{
		ChatID: c.Subscriber.ChatID,
		Text:   strings.TrimRight(b.String(), "\n"),
	}
	if c.Session.BookingURL != "" {
		msg.Buttons = []models.MessageButton{{Text: "Book now", URL: c.Session.BookingURL}}
	}
	return msg
}

// Digest renders one summary listing every matched session, grouped by day.
func (r *MessageRenderer) Digest(sub models.Subscriber, digestType models.DigestType, sessions []models.Session, weather map[string]*models.WeatherReport) models.OutboundMessage {
	var b strings.Builder
	if digestType == models.DigestMorning {
		fmt.Fprintf(&b, "☀️ Today's sessions for you (%d)\n", len(sessions))
	} else {
		fmt.Fprintf(&b, "🌙 Coming up for you (%d)\n", len(sessions))
	}

	currentDay := ""
	for _, session := range sessions {
		if day := session.DateKey(); day != currentDay {
			currentDay = day
			b.WriteString("\n")
			fmt.Fprintf(&b, "📅 %s\n", session.SessionDate.Format("Mon 2 Jan"))
			if section := weatherSection(weather[day]); section != "" {
				b.WriteString(section)
			}
		}
		line := fmt.Sprintf("• %s %s (%s", session.StartTime, session.Name, session.Level)
		if side := sideName(session.SideLabel()); side != "" {
			line += ", " + side
		}
		line += ") " + spotsLabel(session.AvailableSpots)
		if r.urgent(session.AvailableSpots) {
			line += " 🔥"
		}
		b.WriteString(line + "\n")
		if session.BookingURL != "" {
			fmt.Fprintf(&b, "  %s\n", session.BookingURL)
		}
	}

	return models.OutboundMessage{
		ChatID: sub.ChatID,
		Text:   strings.TrimRight(b.String(), "\n"),
	}
}

func (r *MessageRenderer) when(session models.Session) string {
	start, err := session.StartsAt(r.loc)
	if err != nil {
		return session.DateKey() + " " + session.StartTime
	}
	label := start.Format("Mon 2 Jan 15:04")
	if session.EndTime != nil && *session.EndTime != "" {
		label += "-" + *session.EndTime
	}
	return label
}

func (r *MessageRenderer) urgent(spots *int) bool {
	return spots != nil && *spots > 0 && *spots <= r.lowWater
}

func spotsLabel(spots *int) string {
	switch {
	case spots == nil:
		return "unknown"
	case *spots == 0:
		return "full"
	case *spots == 1:
		return "1 spot left"
	default:
		return fmt.Sprintf("%d spots left", *spots)
	}
}

func sideName(side string) string {
	switch strings.ToUpper(side) {
	case models.SideLeft:
		return "Left"
	case models.SideRight:
		return "Right"
	default:
		return side
	}
}

func weatherSection(report *models.WeatherReport) string {
	if report == nil {
		return ""
	}
	var parts []string
	if report.AirTempC != nil {
		parts = append(parts, fmt.Sprintf("air %.0f°C", *report.AirTempC))
	}
	if report.WaterTempC != nil {
		parts = append(parts, fmt.Sprintf("water %.0f°C", *report.WaterTempC))
	}
	if report.Conditions != "" {
		parts = append(parts, report.Conditions)
	}
	if len(parts) == 0 {
		return ""
	}
	return "🌡 " + strings.Join(parts, ", ") + "\n"
}
