package schedule

import (
	"sort"

	"focuscal/internal/model"
)

// Reconciliation is the outcome of intersecting participant free slots.
// When no common slot exists, Fallback is true and Suggested carries the
// configured default so callers can always distinguish a real common
// slot from the fallback.
type Reconciliation struct {
	Common    []model.FreeSlot `json:"common"`
	Fallback  bool             `json:"fallback"`
	Suggested model.FreeSlot   `json:"suggested"`
}

// Intersect computes the slots every participant's free list contains,
// matched by label, in ascending order. Participants must share the
// same granule labeling scheme. An empty member list empties the
// result; zero participants yield an empty result.
func Intersect(perParticipant [][]model.FreeSlot) []model.FreeSlot {
	common := make([]model.FreeSlot, 0)
	if len(perParticipant) == 0 {
		return common
	}

	for _, slot := range perParticipant[0] {
		inAll := true
		for _, other := range perParticipant[1:] {
			if !containsLabel(other, slot.Label) {
				inAll = false
				break
			}
		}
		if inAll && !containsLabel(common, slot.Label) {
			common = append(common, slot)
		}
	}

	sort.Slice(common, func(i, j int) bool { return common[i].Start < common[j].Start })
	return common
}

// Reconcile intersects the participants' free slots and applies the
// fallback label when nothing is common. The fallback is explicit in
// the result, never silently substituted into Common.
func Reconcile(perParticipant [][]model.FreeSlot, fallbackLabel string) Reconciliation {
	common := Intersect(perParticipant)
	if len(common) > 0 {
		return Reconciliation{Common: common, Suggested: common[0]}
	}

	start, err := model.LabelMinute(fallbackLabel)
	if err != nil {
		fallbackLabel = "10:00"
		start = 600
	}
	return Reconciliation{
		Common:    common,
		Fallback:  true,
		Suggested: model.FreeSlot{Label: fallbackLabel, Start: start},
	}
}

func containsLabel(slots []model.FreeSlot, label string) bool {
	for _, s := range slots {
		if s.Label == label {
			return true
		}
	}
	return false
}
