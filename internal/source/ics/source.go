package ics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"focuscal/internal/source"
)

// Source serves raw calendar events from per-participant ICS feeds.
// It implements source.Source.
type Source struct {
	fetcher *fetcher

	mu    sync.RWMutex
	feeds map[string]Feed // keyed by participant ID
}

// NewSource creates an ICS-backed source with the given cache directory.
func NewSource(cacheDir string) *Source {
	return &Source{
		fetcher: newFetcher(cacheDir),
		feeds:   make(map[string]Feed),
	}
}

// AddFeed registers (or replaces) the feed for a participant.
func (s *Source) AddFeed(participantID, feedURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[participantID] = Feed{ParticipantID: participantID, URL: feedURL}
}

// Events fetches, parses, and expands the participant's feed into raw
// events intersecting the given local day.
func (s *Source) Events(ctx context.Context, participantID string, day time.Time) ([]source.RawCalendarEvent, error) {
	s.mu.RLock()
	feed, ok := s.feeds[participantID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no ICS feed registered for participant %s", participantID)
	}

	res, err := s.fetcher.fetch(ctx, feed)
	if err != nil {
		return nil, err
	}

	parsed, err := parseFeed(participantID, res.Body)
	if err != nil {
		return nil, err
	}

	loc := day.Location()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	occurrences := expandDay(parsed, dayStart, dayEnd, loc)

	events := make([]source.RawCalendarEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		events = append(events, occ.toRaw())
	}
	return events, nil
}

// toRaw converts an occurrence into the provider-shaped event the
// normalizer consumes. RFC 3339 timestamps carry their own zone.
func (o occurrence) toRaw() source.RawCalendarEvent {
	ev := source.RawCalendarEvent{
		ID:          o.UID + "/" + o.Start.Format(time.RFC3339),
		Subject:     o.Summary,
		Start:       source.RawDateTime{DateTime: o.Start.Format(time.RFC3339)},
		End:         source.RawDateTime{DateTime: o.End.Format(time.RFC3339)},
		IsCancelled: o.Cancelled,
		IsAllDay:    o.AllDay,
		Location:    o.Location,
	}
	for _, a := range o.Attendees {
		response := "accepted"
		if a.Declined {
			response = "declined"
		}
		ev.Attendees = append(ev.Attendees, source.RawAttendee{
			Name:     a.Name,
			Address:  a.Address,
			Response: response,
		})
	}
	return ev
}
