// Package planner owns the mutable scheduling state around the pure
// core: the comparison set of participants, their availability records,
// and the focus-session list. All recomputation is caller-driven; the
// planner never schedules its own refreshes.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"focuscal/internal/identity"
	appLog "focuscal/internal/log"
	"focuscal/internal/model"
	"focuscal/internal/schedule"
	"focuscal/internal/source"
)

// ErrPrimaryNotLoaded is returned when session generation is requested
// before the primary participant's calendar has resolved.
var ErrPrimaryNotLoaded = errors.New("primary participant calendar is not loaded")

// ErrUnknownParticipant is returned for operations on a participant
// that is not part of the comparison set.
var ErrUnknownParticipant = errors.New("participant is not in the comparison set")

// Options configures a Planner. Zero values fall back to the observed
// defaults (08:00-20:00 window, 60-minute granularity, 4 sessions of
// 25 minutes, fallback "10:00").
type Options struct {
	Window             model.OperatingWindow
	GranularityMinutes int
	MaxSessionsPerDay  int
	SessionDuration    int
	SessionTitles      []string
	FallbackSlot       string
	Viewer             *time.Location
	LegacyOffset       time.Duration
	Resolver           identity.Resolver

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type participant struct {
	id    string // principal name
	short string
	src   source.Source

	record model.ParticipantAvailability
}

// Planner holds one comparison session's state. Safe for concurrent use.
type Planner struct {
	opts Options
	norm schedule.Normalizer

	mu        sync.Mutex
	setID     uuid.UUID
	version   uint64
	primaryID string
	order     []string
	byID      map[string]*participant
	sessions  []model.FocusSession
}

// New creates a Planner whose primary participant (the viewer) is
// backed by primarySource.
func New(opts Options, primaryShort string, primarySource source.Source) *Planner {
	if opts.Window.End <= opts.Window.Start {
		opts.Window = model.OperatingWindow{Start: 8 * 60, End: 20 * 60}
	}
	if opts.GranularityMinutes <= 0 {
		opts.GranularityMinutes = 60
	}
	if opts.MaxSessionsPerDay <= 0 {
		opts.MaxSessionsPerDay = 4
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = 25
	}
	if opts.FallbackSlot == "" {
		opts.FallbackSlot = "10:00"
	}
	if opts.Viewer == nil {
		opts.Viewer = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Planner{
		opts: opts,
		norm: schedule.Normalizer{
			Window:       opts.Window,
			Viewer:       opts.Viewer,
			LegacyOffset: opts.LegacyOffset,
		},
		setID: uuid.New(),
		byID:  make(map[string]*participant),
	}
	p.primaryID = p.add(primaryShort, primarySource)
	return p
}

// SetID identifies this comparison session.
func (p *Planner) SetID() string {
	return p.setID.String()
}

// AddParticipant invites a participant, resolving the short name to a
// principal. The new record starts in Loading until the next refresh.
// Changing the set invalidates in-flight fetches.
func (p *Planner) AddParticipant(shortName string, src source.Source) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(shortName, src)
}

// add assumes p.mu is held (or the planner is not yet shared).
func (p *Planner) add(shortName string, src source.Source) string {
	id := p.opts.Resolver.Principal(shortName)
	if _, exists := p.byID[id]; exists {
		return id
	}
	p.version++
	p.order = append(p.order, id)
	p.byID[id] = &participant{
		id:    id,
		short: p.opts.Resolver.Short(id),
		src:   src,
		record: model.ParticipantAvailability{
			ParticipantID: id,
			DisplayName:   p.opts.Resolver.Short(id),
			Status:        model.StatusLoading,
		},
	}
	return id
}

// RemoveParticipant drops a participant from the comparison set. The
// primary participant cannot be removed.
func (p *Planner) RemoveParticipant(shortName string) error {
	id := p.opts.Resolver.Principal(shortName)

	p.mu.Lock()
	defer p.mu.Unlock()

	if id == p.primaryID {
		return errors.New("cannot remove the primary participant")
	}
	if _, ok := p.byID[id]; !ok {
		return ErrUnknownParticipant
	}
	p.version++
	delete(p.byID, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Refresh resets every participant to Loading and refetches all of them
// concurrently. Results belonging to a superseded refresh or a changed
// participant set are discarded. The returned channel closes when every
// fetch of this refresh has settled; callers may ignore it.
func (p *Planner) Refresh(ctx context.Context) <-chan struct{} {
	p.mu.Lock()
	p.version++
	version := p.version
	day := p.opts.Now().In(p.opts.Viewer)

	targets := make([]*participant, 0, len(p.order))
	for _, id := range p.order {
		part := p.byID[id]
		part.record = model.ParticipantAvailability{
			ParticipantID: part.id,
			DisplayName:   part.short,
			Status:        model.StatusLoading,
		}
		targets = append(targets, part)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, part := range targets {
		wg.Add(1)
		go func(part *participant) {
			defer wg.Done()
			p.fetchOne(ctx, part.id, part.src, day, version)
		}(part)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// fetchOne resolves one participant's day and installs the record,
// unless the comparison set moved on while the fetch was in flight.
func (p *Planner) fetchOne(ctx context.Context, id string, src source.Source, day time.Time, version uint64) {
	record := model.ParticipantAvailability{ParticipantID: id}

	events, err := src.Events(ctx, id, day)
	if err != nil {
		record.Status = model.StatusFailed
		record.Error = err.Error()
		appLog.Error("participant fetch failed", err, "participant", id)
	} else {
		entries := p.norm.NormalizeAll(events, day)
		busy := schedule.BusyIntervals(entries)
		record.Entries = entries
		record.Busy = busy
		record.FreeSlots = schedule.ComputeFreeSlots(busy, nil, p.opts.Window, p.opts.GranularityMinutes)
		record.Status = model.StatusLoaded
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.version != version {
		appLog.Debug("dropping stale fetch result", "participant", id,
			"fetched_version", version, "current_version", p.version)
		return
	}
	part, ok := p.byID[id]
	if !ok {
		return
	}
	record.DisplayName = part.short
	part.record = record
}

// Participants returns a copy of every availability record in insertion
// order.
func (p *Planner) Participants() []model.ParticipantAvailability {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.ParticipantAvailability, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id].record)
	}
	return out
}

// Common reconciles the free slots of every Loaded participant.
// Loading and Failed participants are excluded so an unresolved fetch
// never empties the common set. resolved reports how many participants
// contributed; callers decide whether that is enough to act on.
func (p *Planner) Common() (rec schedule.Reconciliation, resolved int) {
	p.mu.Lock()
	perParticipant := make([][]model.FreeSlot, 0, len(p.order))
	for _, id := range p.order {
		record := p.byID[id].record
		if record.Status != model.StatusLoaded {
			continue
		}
		perParticipant = append(perParticipant, record.FreeSlots)
	}
	fallback := p.opts.FallbackSlot
	p.mu.Unlock()

	return schedule.Reconcile(perParticipant, fallback), len(perParticipant)
}

// GenerateSessions places new focus sessions into the primary
// participant's free slots, treating existing sessions as busy. An
// empty free-slot set generates nothing and is not an error.
func (p *Planner) GenerateSessions() ([]model.FocusSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	primary := p.byID[p.primaryID]
	if primary.record.Status != model.StatusLoaded {
		return nil, ErrPrimaryNotLoaded
	}

	free := schedule.ComputeFreeSlots(primary.record.Busy, p.sessions, p.opts.Window, p.opts.GranularityMinutes)
	placed := schedule.PlaceSessions(free, p.opts.MaxSessionsPerDay, p.opts.SessionDuration, p.opts.SessionTitles, p.opts.Now())
	p.sessions = append(p.sessions, placed...)

	appLog.Info("sessions generated", "count", len(placed), "total", len(p.sessions))
	return placed, nil
}

// Sessions returns a copy of the current session list.
func (p *Planner) Sessions() []model.FocusSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.FocusSession, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// ClearSession removes a single session by id.
func (p *Planner) ClearSession(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.sessions {
		if s.ID == id {
			p.sessions = append(p.sessions[:i], p.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAllSessions removes every session and reports how many were
// cleared.
func (p *Planner) ClearAllSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cleared := len(p.sessions)
	p.sessions = nil
	return cleared
}

// DaySchedule is the primary participant's rendered day.
type DaySchedule struct {
	Status    model.FetchStatus     `json:"status"`
	Entries   []model.CalendarEntry `json:"entries"`
	Sessions  []model.FocusSession  `json:"sessions"`
	FreeSlots []model.FreeSlot      `json:"freeSlots"`
	Slots     []schedule.SlotView   `json:"slots"`
	Stats     ScheduleStats         `json:"stats"`
}

// ScheduleStats summarizes the day for the presentation layer.
type ScheduleStats struct {
	Events    int `json:"events"`
	Sessions  int `json:"sessions"`
	FreeSlots int `json:"freeSlots"`
}

// Schedule computes the primary participant's day view, with existing
// sessions counted as occupied.
func (p *Planner) Schedule() DaySchedule {
	p.mu.Lock()
	defer p.mu.Unlock()

	primary := p.byID[p.primaryID]
	free := schedule.ComputeFreeSlots(primary.record.Busy, p.sessions, p.opts.Window, p.opts.GranularityMinutes)

	sessions := make([]model.FocusSession, len(p.sessions))
	copy(sessions, p.sessions)

	return DaySchedule{
		Status:    primary.record.Status,
		Entries:   primary.record.Entries,
		Sessions:  sessions,
		FreeSlots: free,
		Slots:     schedule.SlotViews(free, p.opts.Window, p.opts.GranularityMinutes),
		Stats: ScheduleStats{
			Events:    len(primary.record.Entries),
			Sessions:  len(sessions),
			FreeSlots: len(free),
		},
	}
}
