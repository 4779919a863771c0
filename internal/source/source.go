// Package source defines the calendar data source boundary: the raw,
// provider-shaped event variant and the interface both provider
// implementations (graph, ics) satisfy. Raw events are validated by the
// normalizer, never trusted downstream.
package source

import (
	"context"
	"time"
)

// RawDateTime is a provider timestamp plus the zone it is expressed in.
// DateTime follows either RFC 3339 or the Graph wire form
// "2006-01-02T15:04:05.0000000" with the zone carried separately.
type RawDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// RawAttendee is one invited participant on a raw event.
type RawAttendee struct {
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Response string `json:"response,omitempty"` // "accepted", "declined", ...
}

// RawCalendarEvent is the provider-shaped event at the system boundary.
// Optional fields are explicit; absence means the provider omitted them.
type RawCalendarEvent struct {
	ID                    string        `json:"id"`
	Subject               string        `json:"subject"`
	Start                 RawDateTime   `json:"start"`
	End                   RawDateTime   `json:"end"`
	IsCancelled           bool          `json:"isCancelled,omitempty"`
	IsAllDay              bool          `json:"isAllDay,omitempty"`
	IsOnlineMeeting       bool          `json:"isOnlineMeeting,omitempty"`
	OnlineMeetingProvider string        `json:"onlineMeetingProvider,omitempty"`
	Location              string        `json:"location,omitempty"`
	Attendees             []RawAttendee `json:"attendees,omitempty"`
}

// Source fetches the raw events of one participant for one local day.
// Errors surface to the caller, which maps them to a failed participant
// status; they never abort other participants.
type Source interface {
	Events(ctx context.Context, participantID string, day time.Time) ([]RawCalendarEvent, error)
}
