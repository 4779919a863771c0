// Package graph fetches a participant's day from a Microsoft-Graph-shaped
// calendar view endpoint. Token acquisition is the deployment's concern;
// the client only attaches whatever static bearer token it was given.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	appLog "focuscal/internal/log"
	"focuscal/internal/source"
)

// Client talks to one calendar view endpoint.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Client for the given base URL, e.g.
// "https://graph.example.com/v1.0". token may be empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// wire shapes of the provider response. Nested address/status objects
// are flattened into source.RawAttendee during conversion.
type calendarViewResponse struct {
	Value []wireEvent `json:"value"`
}

type wireEvent struct {
	ID                    string             `json:"id"`
	Subject               string             `json:"subject"`
	Start                 source.RawDateTime `json:"start"`
	End                   source.RawDateTime `json:"end"`
	IsCancelled           bool               `json:"isCancelled"`
	IsAllDay              bool               `json:"isAllDay"`
	IsOnlineMeeting       bool               `json:"isOnlineMeeting"`
	OnlineMeetingProvider string             `json:"onlineMeetingProvider"`
	Location              *wireLocation      `json:"location"`
	Attendees             []wireAttendee     `json:"attendees"`
}

type wireLocation struct {
	DisplayName string `json:"displayName"`
}

type wireAttendee struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
	Status struct {
		Response string `json:"response"`
	} `json:"status"`
}

// Events fetches the participant's raw events for the given local day.
func (c *Client) Events(ctx context.Context, participantID string, day time.Time) ([]source.RawCalendarEvent, error) {
	if c.baseURL == "" {
		return nil, errors.New("graph base URL is not configured")
	}
	if participantID == "" {
		return nil, errors.New("participant id is empty")
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	endpoint := fmt.Sprintf("%s/users/%s/calendarView?startDateTime=%s&endDateTime=%s",
		c.baseURL,
		url.PathEscape(participantID),
		url.QueryEscape(dayStart.Format(time.RFC3339)),
		url.QueryEscape(dayEnd.Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	appLog.Debug("calendar view fetch start", "participant", participantID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar view fetch for %s: %s", participantID, resp.Status)
	}

	var parsed calendarViewResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	events := make([]source.RawCalendarEvent, 0, len(parsed.Value))
	for _, w := range parsed.Value {
		events = append(events, w.toRaw())
	}

	appLog.Info("calendar view fetch success", "participant", participantID, "event_count", len(events))
	return events, nil
}

func (w wireEvent) toRaw() source.RawCalendarEvent {
	ev := source.RawCalendarEvent{
		ID:                    w.ID,
		Subject:               w.Subject,
		Start:                 w.Start,
		End:                   w.End,
		IsCancelled:           w.IsCancelled,
		IsAllDay:              w.IsAllDay,
		IsOnlineMeeting:       w.IsOnlineMeeting,
		OnlineMeetingProvider: w.OnlineMeetingProvider,
	}
	if w.Location != nil {
		ev.Location = w.Location.DisplayName
	}
	for _, a := range w.Attendees {
		ev.Attendees = append(ev.Attendees, source.RawAttendee{
			Name:     a.EmailAddress.Name,
			Address:  a.EmailAddress.Address,
			Response: a.Status.Response,
		})
	}
	return ev
}
