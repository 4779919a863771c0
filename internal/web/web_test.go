package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuscal/internal/config"
	"focuscal/internal/identity"
	"focuscal/internal/model"
	"focuscal/internal/planner"
	"focuscal/internal/source"
)

// stubSource serves the same canned events to every participant.
type stubSource struct {
	events []source.RawCalendarEvent
}

func (s *stubSource) Events(_ context.Context, _ string, _ time.Time) ([]source.RawCalendarEvent, error) {
	return s.events, nil
}

func oneMeeting() []source.RawCalendarEvent {
	return []source.RawCalendarEvent{{
		ID:      "m1",
		Subject: "Standup",
		Start:   source.RawDateTime{DateTime: "2024-01-15T09:00:00Z"},
		End:     source.RawDateTime{DateTime: "2024-01-15T09:30:00Z"},
	}}
}

func newTestServer(t *testing.T, cfg *config.Config, src source.Source) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	pl := planner.New(planner.Options{
		Viewer:   time.UTC,
		Resolver: identity.Resolver{Domain: "example.com"},
		Now:      func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) },
	}, "ME", src)
	<-pl.Refresh(context.Background())

	return NewServer(cfg, pl, func(string) source.Source { return src })
}

func doJSON(t *testing.T, h http.Handler, method, path string, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{})
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSchedule(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{events: oneMeeting()})

	var day planner.DaySchedule
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/schedule", "", &day)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, model.StatusLoaded, day.Status)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "Standup", day.Entries[0].Title)
	assert.Equal(t, 1, day.Stats.Events)
	assert.Equal(t, 11, day.Stats.FreeSlots)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/schedule", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{events: oneMeeting()})
	h := s.Handler()

	var generated struct {
		Created  []model.FocusSession `json:"created"`
		Sessions []model.FocusSession `json:"sessions"`
	}
	rec := doJSON(t, h, http.MethodPost, "/api/sessions/generate", "", &generated)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, generated.Created, 4)
	assert.Equal(t, "08:00", generated.Created[0].Time, "earliest free slot comes first")

	var listed []model.FocusSession
	rec = doJSON(t, h, http.MethodGet, "/api/sessions", "", &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, listed, 4)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+listed[0].ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+listed[0].ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "already-cleared session")

	var cleared map[string]int
	rec = doJSON(t, h, http.MethodDelete, "/api/sessions", "", &cleared)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, cleared["cleared"])
}

func TestGenerateBeforePrimaryLoaded(t *testing.T) {
	src := &stubSource{}
	cfg := config.DefaultConfig()
	cfg.Normalize()
	pl := planner.New(planner.Options{
		Viewer:   time.UTC,
		Resolver: identity.Resolver{Domain: "example.com"},
	}, "ME", src)
	s := NewServer(cfg, pl, func(string) source.Source { return src })

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/generate", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestParticipantFlow(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{events: oneMeeting()})
	h := s.Handler()

	var added map[string]string
	rec := doJSON(t, h, http.MethodPost, "/api/participants", `{"name":"ASMITH"}`, &added)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "asmith@example.com", added["participantId"])

	var records []model.ParticipantAvailability
	rec = doJSON(t, h, http.MethodGet, "/api/participants", "", &records)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, records, 2)
	assert.Equal(t, "ASMITH", records[1].DisplayName)

	rec = doJSON(t, h, http.MethodDelete, "/api/participants/ASMITH", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/participants/ASMITH", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/participants/ME", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "primary participant is protected")
}

// contextRecordingSource hands out its canned events and exposes the
// context each fetch ran with.
type contextRecordingSource struct {
	events []source.RawCalendarEvent
	ctxs   chan context.Context
}

func (c *contextRecordingSource) Events(ctx context.Context, _ string, _ time.Time) ([]source.RawCalendarEvent, error) {
	select {
	case c.ctxs <- ctx:
	default:
	}
	return c.events, nil
}

// Adding a participant over a real connection must kick off fetches
// that outlive the request: net/http cancels the request context once
// the handler returns, and a fetch tied to it would resolve Failed
// with "context canceled" instead of the source's own outcome. The
// in-process recorder tests cannot see this because their context is
// never canceled.
func TestParticipantAddFetchOutlivesRequest(t *testing.T) {
	recording := &contextRecordingSource{events: oneMeeting(), ctxs: make(chan context.Context, 4)}

	cfg := config.DefaultConfig()
	cfg.Normalize()
	pl := planner.New(planner.Options{
		Viewer:   time.UTC,
		Resolver: identity.Resolver{Domain: "example.com"},
		Now:      func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) },
	}, "ME", &stubSource{events: oneMeeting()})
	<-pl.Refresh(context.Background())

	s := NewServer(cfg, pl, func(string) source.Source { return recording })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/participants", "application/json", strings.NewReader(`{"name":"ASMITH"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	var fetchCtx context.Context
	select {
	case fetchCtx = <-recording.ctxs:
	case <-time.After(2 * time.Second):
		t.Fatal("participant fetch never started")
	}

	require.Eventually(t, func() bool {
		for _, r := range pl.Participants() {
			if r.ParticipantID == "asmith@example.com" {
				return r.Status == model.StatusLoaded
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "added participant must resolve on the source's outcome")

	// The request has been fully served and torn down by now.
	select {
	case <-fetchCtx.Done():
		t.Fatalf("fetch context canceled by request teardown: %v", fetchCtx.Err())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestParticipantBadBody(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/participants", `{"name":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/participants", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommon(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{events: oneMeeting()})

	var body struct {
		Common    []model.FreeSlot `json:"common"`
		Fallback  bool             `json:"fallback"`
		Suggested model.FreeSlot   `json:"suggested"`
		Resolved  int              `json:"resolved"`
	}
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/participants/common", "", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, body.Resolved)
	assert.False(t, body.Fallback)
	assert.Equal(t, "08:00", body.Suggested.Label)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, nil, &stubSource{events: oneMeeting()})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/refresh", "", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/refresh", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	s := newTestServer(t, cfg, &stubSource{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/schedule", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("admin", "wrong")
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("admin", "s3cret")
	good := httptest.NewRecorder()
	h.ServeHTTP(good, req)
	assert.Equal(t, http.StatusOK, good.Code)

	rec = doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays reachable without credentials")
}
