package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "focuscal/internal/log"
)

// parsedEvent is the normalized representation of a VEVENT before
// recurrence expansion.
type parsedEvent struct {
	UID string

	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	Cancelled bool
	Attendees []attendee

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID in the event's own timezone
	IsOverride bool
}

type attendee struct {
	Name     string
	Address  string
	Declined bool
}

// parseFeed parses one ICS payload into parsedEvents. Broken VEVENTs
// are logged and skipped; they never fail the batch.
func parseFeed(participantID string, body []byte) ([]parsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "participant", participantID)
		return nil, err
	}

	events := make([]parsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "participant", participantID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "participant", participantID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (parsedEvent, error) {
	var out parsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(p.Value, "CANCELLED")
	}

	// DTSTART / DTEND via the library's timezone-aware helpers.
	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	// All-day detection: VALUE=DATE parameter or a date-only DTSTART.
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if params := dtStartProp.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		a := attendee{Address: strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")}
		if params := p.ICalParameters; params != nil {
			if cn, ok := params["CN"]; ok && len(cn) > 0 {
				a.Name = cn[0]
			}
			if ps, ok := params["PARTSTAT"]; ok && len(ps) > 0 {
				a.Declined = strings.EqualFold(ps[0], "DECLINED")
			}
		}
		out.Attendees = append(out.Attendees, a)
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-joined list.
	// Zone-less values are interpreted in the property's TZID so the
	// exclusion instant matches the occurrence it removes.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propertyLocation(p.ICalParameters)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, propertyLocation(ridProp.ICalParameters)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propertyLocation resolves the TZID parameter of a property into a
// location for zone-less date-time values. Missing or unknown TZIDs
// fall back to the host zone.
func propertyLocation(params map[string][]string) *time.Location {
	if params == nil {
		return time.Local
	}
	tzids, ok := params["TZID"]
	if !ok || len(tzids) == 0 || tzids[0] == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tzids[0])
	if err != nil {
		appLog.Debug("unknown TZID on property, assuming host zone", "tzid", tzids[0])
		return time.Local
	}
	return loc
}

// parseICSTime parses a basic ICS date/date-time string. Zone-less
// forms are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
