package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placeNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestPlaceSessions_CapsAtMax(t *testing.T) {
	free := slots("09:00", "10:00", "11:00", "13:00", "16:00")

	placed := PlaceSessions(free, 4, 25, []string{"Focus Session"}, placeNow)

	require.Len(t, placed, 4)
	times := make([]string, 0, len(placed))
	for _, s := range placed {
		times = append(times, s.Time)
	}
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "13:00"}, times,
		"earliest-first, never touching slots past the cap")
	for _, s := range placed {
		assert.Equal(t, 25, s.DurationMinutes, "duration is fixed, not derived from slot size")
	}
}

func TestPlaceSessions_FewerSlotsThanMax(t *testing.T) {
	free := slots("09:00", "15:00")
	placed := PlaceSessions(free, 4, 25, nil, placeNow)
	assert.Len(t, placed, 2)
}

func TestPlaceSessions_NoFreeSlots(t *testing.T) {
	assert.Nil(t, PlaceSessions(nil, 4, 25, nil, placeNow))
}

func TestPlaceSessions_TitleRotation(t *testing.T) {
	free := slots("08:00", "09:00", "10:00", "11:00")
	titles := []string{"Deep Work", "Inbox Zero"}

	placed := PlaceSessions(free, 4, 25, titles, placeNow)

	require.Len(t, placed, 4)
	assert.Equal(t, "Deep Work", placed[0].Title)
	assert.Equal(t, "Inbox Zero", placed[1].Title)
	assert.Equal(t, "Deep Work", placed[2].Title, "titles cycle when the list is shorter than the slot count")
	assert.Equal(t, "Inbox Zero", placed[3].Title)
}

func TestPlaceSessions_IDsUniqueAndMonotonic(t *testing.T) {
	free := slots("08:00", "09:00", "10:00", "11:00")
	placed := PlaceSessions(free, 4, 25, nil, placeNow)

	seen := make(map[string]bool)
	for i, s := range placed {
		require.NotEmpty(t, s.ID)
		assert.False(t, seen[s.ID], "ids must not collide within a batch")
		seen[s.ID] = true
		if i > 0 {
			assert.Greater(t, s.ID, placed[i-1].ID, "batch ids are monotonically ordered")
		}
	}
}
