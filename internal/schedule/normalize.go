package schedule

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	appLog "focuscal/internal/log"
	"focuscal/internal/model"
	"focuscal/internal/source"
)

// Color categories assigned to normalized entries. The values match the
// CSS classes the presentation layer renders, derived deterministically
// from event attributes.
const (
	ColorCancelled   = "bg-gray-400"
	ColorTeams       = "bg-blue-500"
	ColorOtherOnline = "bg-purple-500"
	ColorLarge       = "bg-red-500"
	ColorMedium      = "bg-orange-500"
	ColorSmall       = "bg-green-500"
	ColorDefault     = "bg-indigo-500"
)

const providerTeams = "teamsForBusiness"

// windowsZones maps the provider's Windows-style timezone names to IANA
// identifiers. Unlisted names are tried as IANA directly.
var windowsZones = map[string]string{
	"UTC":                            "UTC",
	"GMT Standard Time":              "Europe/London",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Romance Standard Time":          "Europe/Paris",
	"E. Europe Standard Time":        "Europe/Bucharest",
	"Eastern Standard Time":          "America/New_York",
	"Central Standard Time":          "America/Chicago",
	"Mountain Standard Time":         "America/Denver",
	"Pacific Standard Time":          "America/Los_Angeles",
	"India Standard Time":            "Asia/Kolkata",
	"China Standard Time":            "Asia/Shanghai",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"SE Asia Standard Time":          "Asia/Bangkok",
	"Arabian Standard Time":          "Asia/Dubai",
	"South Africa Standard Time":     "Africa/Johannesburg",
	"E. South America Standard Time": "America/Sao_Paulo",
}

// Normalizer converts raw provider events into canonical calendar
// entries. Pure transform; rejected events yield ok=false, never errors.
type Normalizer struct {
	// Window bounds which corrected start times are accepted.
	Window model.OperatingWindow

	// Viewer is the timezone the day is expressed in.
	Viewer *time.Location

	// LegacyOffset shifts every provider timestamp by a constant amount.
	// Compensates for deployments whose provider misreports zones; zero
	// for correct providers.
	LegacyOffset time.Duration
}

// Normalize converts one raw event into a calendar entry for the day of
// ref. It rejects cancelled, all-day, out-of-window, other-day, and
// malformed (missing timestamps, non-positive duration) events.
func (n Normalizer) Normalize(ev source.RawCalendarEvent, ref time.Time) (model.CalendarEntry, bool) {
	if ev.IsCancelled || ev.IsAllDay {
		return model.CalendarEntry{}, false
	}

	start, err := n.eventTime(ev.Start)
	if err != nil {
		appLog.Debug("event rejected: bad start", "id", ev.ID, "value", ev.Start.DateTime)
		return model.CalendarEntry{}, false
	}
	end, err := n.eventTime(ev.End)
	if err != nil {
		appLog.Debug("event rejected: bad end", "id", ev.ID, "value", ev.End.DateTime)
		return model.CalendarEntry{}, false
	}

	duration := int(math.Round(end.Sub(start).Minutes()))
	if duration <= 0 {
		appLog.Debug("event rejected: non-positive duration", "id", ev.ID, "minutes", duration)
		return model.CalendarEntry{}, false
	}

	if !ref.IsZero() {
		ry, rm, rd := ref.In(n.viewer()).Date()
		ey, em, ed := start.Date()
		if ry != ey || rm != em || rd != ed {
			return model.CalendarEntry{}, false
		}
	}

	startMinute := start.Hour()*60 + start.Minute()
	if !n.Window.Contains(startMinute) {
		return model.CalendarEntry{}, false
	}

	endMinute := startMinute + duration
	if endMinute > model.MinutesPerDay {
		endMinute = model.MinutesPerDay
	}

	title := ev.Subject
	if title == "" {
		title = "Untitled Event"
	}
	location := ev.Location
	if location == "" && ev.IsOnlineMeeting {
		location = "Online Meeting"
	}

	return model.CalendarEntry{
		ID:              ev.ID,
		Title:           title,
		Time:            model.MinuteLabel(startMinute),
		DurationMinutes: duration,
		AttendeeCount:   countAttendees(ev.Attendees),
		Location:        location,
		Color:           EventColor(ev),
		Busy:            model.BusyInterval{Start: startMinute, End: endMinute},
	}, true
}

// NormalizeAll converts a batch, skipping rejected events, and returns
// entries sorted by start time.
func (n Normalizer) NormalizeAll(events []source.RawCalendarEvent, ref time.Time) []model.CalendarEntry {
	entries := make([]model.CalendarEntry, 0, len(events))
	for _, ev := range events {
		entry, ok := n.Normalize(ev, ref)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Busy.Start < entries[j].Busy.Start
	})
	return entries
}

// BusyIntervals extracts the scheduling input from normalized entries.
func BusyIntervals(entries []model.CalendarEntry) []model.BusyInterval {
	busy := make([]model.BusyInterval, 0, len(entries))
	for _, e := range entries {
		busy = append(busy, e.Busy)
	}
	return busy
}

// EventColor derives the presentation color category from event
// attributes. Pure function; plays no part in slot computation.
func EventColor(ev source.RawCalendarEvent) string {
	if ev.IsCancelled {
		return ColorCancelled
	}
	if ev.IsOnlineMeeting {
		if ev.OnlineMeetingProvider == providerTeams {
			return ColorTeams
		}
		return ColorOtherOnline
	}
	switch count := len(ev.Attendees); {
	case count > 10:
		return ColorLarge
	case count > 5:
		return ColorMedium
	case count > 2:
		return ColorSmall
	default:
		return ColorDefault
	}
}

func countAttendees(attendees []source.RawAttendee) int {
	count := 0
	for _, a := range attendees {
		if strings.EqualFold(a.Response, "declined") {
			continue
		}
		count++
	}
	return count
}

func (n Normalizer) viewer() *time.Location {
	if n.Viewer != nil {
		return n.Viewer
	}
	return time.Local
}

// eventTime parses a provider timestamp and converts it into the
// viewer's zone, applying the legacy offset if configured.
func (n Normalizer) eventTime(rdt source.RawDateTime) (time.Time, error) {
	raw := strings.TrimSpace(rdt.DateTime)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Graph wire form: zone-less timestamp, zone carried separately.
		// Trim sub-second digits before parsing.
		if i := strings.IndexByte(raw, '.'); i >= 0 {
			raw = raw[:i]
		}
		t, err = time.ParseInLocation("2006-01-02T15:04:05", raw, resolveZone(rdt.TimeZone))
		if err != nil {
			return time.Time{}, err
		}
	}

	return t.Add(n.LegacyOffset).In(n.viewer()), nil
}

func resolveZone(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || name == "Z" {
		return time.UTC
	}
	if iana, ok := windowsZones[name]; ok {
		name = iana
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Debug("unknown provider timezone, assuming UTC", "zone", name)
		return time.UTC
	}
	return loc
}
