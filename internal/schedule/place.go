package schedule

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"focuscal/internal/model"
)

// PlaceSessions turns the earliest free slots into focus sessions: the
// first min(maxSessions, len(free)) slots in chronological order, each
// with the fixed duration and a title cycled from titles. IDs are ULIDs
// seeded from now, monotonic within the batch.
//
// A session always claims a whole slot even when its duration is
// shorter than the granule; the remainder is not re-offered as free.
func PlaceSessions(free []model.FreeSlot, maxSessions, durationMinutes int, titles []string, now time.Time) []model.FocusSession {
	count := maxSessions
	if len(free) < count {
		count = len(free)
	}
	if count <= 0 {
		return nil
	}

	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	ms := ulid.Timestamp(now)

	sessions := make([]model.FocusSession, 0, count)
	for i, slot := range free[:count] {
		title := "Focus Session"
		if len(titles) > 0 {
			title = titles[i%len(titles)]
		}
		sessions = append(sessions, model.FocusSession{
			ID:              ulid.MustNew(ms, entropy).String(),
			Time:            slot.Label,
			DurationMinutes: durationMinutes,
			Title:           title,
		})
	}
	return sessions
}
