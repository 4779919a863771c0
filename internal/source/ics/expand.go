package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "focuscal/internal/log"
)

var errOccurrenceCap = errors.New("occurrence cap reached")

// occurrenceCap bounds expansion of a single event within the day
// window. A one-day window cannot legitimately exceed this.
const occurrenceCap = 500

// occurrence is one concrete instance of an event inside the requested
// day, in the day's timezone.
type occurrence struct {
	UID       string
	Summary   string
	Location  string
	AllDay    bool
	Cancelled bool
	Attendees []attendee

	Start time.Time
	End   time.Time
}

// expandDay expands parsed events into the occurrences intersecting
// [dayStart, dayEnd), converted into loc. It handles non-recurring
// events, RRULE recurrence, EXDATE exceptions, and RECURRENCE-ID
// overrides.
func expandDay(events []parsedEvent, dayStart, dayEnd time.Time, loc *time.Location) []occurrence {
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]occurrence, 0)
	for uid, baseEvents := range baseByUID {
		overrides := overridesByUID[uid]
		for _, ev := range baseEvents {
			if ev.RawRRule == "" {
				out = append(out, expandSingle(ev, overrides, dayStart, dayEnd, loc)...)
			} else {
				out = append(out, expandRecurring(ev, overrides, dayStart, dayEnd, loc)...)
			}
		}
	}
	return out
}

func expandSingle(ev parsedEvent, overrides []parsedEvent, dayStart, dayEnd time.Time, loc *time.Location) []occurrence {
	if !ev.End.After(dayStart) || !ev.Start.Before(dayEnd) {
		return nil
	}

	start, end := ev.Start, ev.End
	if o, ok := overrideFor(overrides, start); ok {
		start, end = o.Start, o.End
		ev = o
	}
	return []occurrence{makeOccurrence(ev, start, end, loc)}
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, dayStart, dayEnd time.Time, loc *time.Location) []occurrence {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between operates in the event's own location.
	rangeStart := dayStart.In(ev.Start.Location())
	rangeEnd := dayEnd.In(ev.Start.Location())

	// Widen the range start so multi-hour events that began the previous
	// evening still surface when they spill into the day.
	dur := ev.End.Sub(ev.Start)
	if dur > 0 && !ev.AllDay {
		rangeStart = rangeStart.Add(-dur)
	}

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > occurrenceCap {
		appLog.Error("ics expansion truncated", errOccurrenceCap, "uid", ev.UID, "cap", occurrenceCap)
		occTimes = occTimes[:occurrenceCap]
	}

	out := make([]occurrence, 0, len(occTimes))
	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(dur)
		}

		if !occEnd.After(dayStart) || !occStart.Before(dayEnd) {
			continue
		}

		instEv, instStart, instEnd := ev, occStart, occEnd
		if o, ok := overrideFor(overrides, occStart); ok {
			instEv, instStart, instEnd = o, o.Start, o.End
		}
		out = append(out, makeOccurrence(instEv, instStart, instEnd, loc))
	}
	return out
}

// overrideFor finds an override whose RECURRENCE-ID equals the given
// instance start.
func overrideFor(overrides []parsedEvent, instanceStart time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(instanceStart.Location()).Equal(instanceStart) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

func makeOccurrence(ev parsedEvent, start, end time.Time, loc *time.Location) occurrence {
	return occurrence{
		UID:       ev.UID,
		Summary:   ev.Summary,
		Location:  ev.Location,
		AllDay:    ev.AllDay,
		Cancelled: ev.Cancelled,
		Attendees: ev.Attendees,
		Start:     start.In(loc),
		End:       end.In(loc),
	}
}
