// ABOUTME: Immutable point-in-time copy of the store for the aggregation functions
// ABOUTME: Deep-copied on creation so readers never observe later mutations

package logstore

import (
	"slices"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// Snapshot is a deep copy of the store. Each call to Store.Snapshot returns
// an independent value.
type Snapshot struct {
	Version uint64
	Habits  []model.Habit
	// Logs holds each habit's visible entries sorted by day.
	Logs  map[string][]model.LogEntry
	Hives []model.HiveDetail
	// Pending counts unsettled mutations.
	Pending int
}

// Snapshot copies the current visible state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version: s.version,
		Habits:  make([]model.Habit, 0, len(s.order)),
		Logs:    make(map[string][]model.LogEntry, len(s.order)),
		Hives:   make([]model.HiveDetail, 0, len(s.hiveOrder)),
		Pending: len(s.pending) + len(s.hivePending),
	}
	for _, id := range s.order {
		snap.Habits = append(snap.Habits, s.habits[id])
		snap.Logs[id] = []model.LogEntry{}
	}
	for key, entry := range s.logs {
		snap.Logs[key.habitID] = append(snap.Logs[key.habitID], cloneEntry(entry))
	}
	for id := range snap.Logs {
		slices.SortFunc(snap.Logs[id], compareEntries)
	}
	for _, id := range s.hiveOrder {
		if detail, ok := s.hiveDetailLocked(id); ok {
			snap.Hives = append(snap.Hives, detail)
		}
	}
	return snap
}

// Habit returns a habit by ID.
func (s Snapshot) Habit(id string) (model.Habit, bool) {
	for _, h := range s.Habits {
		if h.ID == id {
			return h, true
		}
	}
	return model.Habit{}, false
}

// Entry returns the entry for (habitID, day).
func (s Snapshot) Entry(habitID string, day daykey.Key) (model.LogEntry, bool) {
	for _, e := range s.Logs[habitID] {
		if e.Day == day {
			return e, true
		}
	}
	return model.LogEntry{}, false
}

// Hive returns a hive by ID.
func (s Snapshot) Hive(id string) (model.HiveDetail, bool) {
	for _, h := range s.Hives {
		if h.Hive.ID == id {
			return h, true
		}
	}
	return model.HiveDetail{}, false
}
