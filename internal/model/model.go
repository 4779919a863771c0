package model

import (
	"errors"
	"fmt"
)

// MinutesPerDay bounds every minute-of-day value in this package.
const MinutesPerDay = 24 * 60

// BusyInterval is one occupied span on a single calendar day, already
// converted to the viewer's timezone. Start and End are minutes of day
// with Start < End. Intervals on input may overlap; the availability
// engine merges them implicitly while marking granules.
type BusyInterval struct {
	Start int `json:"startMinuteOfDay"`
	End   int `json:"endMinuteOfDay"`
}

// OperatingWindow is the daily range eligible for scheduling, in minutes
// of day. Read-only at runtime; comes from config.
type OperatingWindow struct {
	Start int `json:"startMinuteOfDay"`
	End   int `json:"endMinuteOfDay"`
}

// Contains reports whether the minute m falls inside the window.
func (w OperatingWindow) Contains(m int) bool {
	return m >= w.Start && m < w.End
}

// FreeSlot is one schedulable granule known to be unoccupied.
// Start is always a multiple of the configured granularity.
type FreeSlot struct {
	Label string `json:"label"`
	Start int    `json:"startMinuteOfDay"`
}

// FocusSession is a placed focus block. Sessions are created by the
// placement policy or by explicit user action and removed individually
// or in bulk; they never expire on their own.
type FocusSession struct {
	ID              string `json:"id"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
	Title           string `json:"title"`
}

// CalendarEntry is a normalized provider event carrying both the
// scheduling input (Busy) and the presentation fields the original
// event contributed (title, attendees, location, color category).
type CalendarEntry struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
	AttendeeCount   int    `json:"attendees,omitempty"`
	Location        string `json:"location,omitempty"`
	Color           string `json:"color"`

	Busy BusyInterval `json:"busy"`
}

// FetchStatus tracks one participant's calendar fetch.
type FetchStatus string

const (
	StatusLoading FetchStatus = "loading"
	StatusLoaded  FetchStatus = "loaded"
	StatusFailed  FetchStatus = "failed"
)

// ParticipantAvailability is one participant's resolved day within a
// comparison set. Records are replaced wholesale on refresh, never
// mutated in place while a computation reads them.
type ParticipantAvailability struct {
	ParticipantID string          `json:"participantId"`
	DisplayName   string          `json:"displayName,omitempty"`
	FreeSlots     []FreeSlot      `json:"freeSlots"`
	Busy          []BusyInterval  `json:"busyIntervals"`
	Entries       []CalendarEntry `json:"entries,omitempty"`
	Status        FetchStatus     `json:"status"`
	Error         string          `json:"error,omitempty"`
}

// MinuteLabel formats a minute of day as HH:MM.
func MinuteLabel(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// LabelMinute parses an HH:MM label back into a minute of day.
func LabelMinute(label string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(label, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad time label %q: %w", label, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.New("time label out of range: " + label)
	}
	return h*60 + m, nil
}
