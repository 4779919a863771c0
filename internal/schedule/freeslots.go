// Package schedule implements the scheduling core: event normalization,
// free-slot derivation, multi-participant reconciliation, and session
// placement. Every function here is pure; callers own all state and
// decide when to recompute.
package schedule

import "focuscal/internal/model"

// ComputeFreeSlots returns the granules inside window that no busy
// interval and no existing session overlaps, in ascending order.
//
// A granule counts as occupied on any non-zero overlap, so partially
// covered granules are never reported free, and overlapping busy
// intervals behave exactly like their merged region.
func ComputeFreeSlots(busy []model.BusyInterval, sessions []model.FocusSession, window model.OperatingWindow, granularityMinutes int) []model.FreeSlot {
	if granularityMinutes <= 0 {
		granularityMinutes = 60
	}

	occupied := make(map[int]bool)
	mark := func(start, end int) {
		for g := window.Start; g < window.End; g += granularityMinutes {
			if g < end && g+granularityMinutes > start {
				occupied[g] = true
			}
		}
	}

	for _, b := range busy {
		if b.End > b.Start {
			mark(b.Start, b.End)
		}
	}
	for _, s := range sessions {
		start, err := model.LabelMinute(s.Time)
		if err != nil || s.DurationMinutes <= 0 {
			continue
		}
		mark(start, start+s.DurationMinutes)
	}

	free := make([]model.FreeSlot, 0)
	for g := window.Start; g < window.End; g += granularityMinutes {
		if !occupied[g] {
			free = append(free, model.FreeSlot{Label: model.MinuteLabel(g), Start: g})
		}
	}
	return free
}

// SlotView is one granule of the rendered day: its label and whether it
// is free. Produced for the presentation layer alongside the free list.
type SlotView struct {
	Label  string `json:"time"`
	Start  int    `json:"startMinuteOfDay"`
	IsFree bool   `json:"isFree"`
}

// SlotViews enumerates every granule in the window and flags the free
// ones. free must come from ComputeFreeSlots with the same inputs.
func SlotViews(free []model.FreeSlot, window model.OperatingWindow, granularityMinutes int) []SlotView {
	if granularityMinutes <= 0 {
		granularityMinutes = 60
	}
	freeSet := make(map[int]bool, len(free))
	for _, f := range free {
		freeSet[f.Start] = true
	}

	views := make([]SlotView, 0)
	for g := window.Start; g < window.End; g += granularityMinutes {
		views = append(views, SlotView{
			Label:  model.MinuteLabel(g),
			Start:  g,
			IsFree: freeSet[g],
		})
	}
	return views
}
