// ABOUTME: Completion predicate, streaks and completion rates over a habit's log entries
// ABOUTME: Pure functions; the reference day is always an explicit input

package aggregate

import (
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// DefaultCompletionWindow is the trailing window, in days, used when
// ComputeCompletionRate is given a non-positive window.
const DefaultCompletionWindow = 30

// dayIndex maps each day to its entry. Later duplicates win.
type dayIndex map[daykey.Key]model.LogEntry

func indexLogs(logs []model.LogEntry) dayIndex {
	idx := make(dayIndex, len(logs))
	for _, e := range logs {
		idx[e.Day] = e
	}
	return idx
}

// Satisfied reports whether entry completes the day: for checkbox habits
// the entry existing is enough, counters need value >= target.
func Satisfied(entry model.LogEntry, habitType model.HabitType, target int) bool {
	if habitType == model.HabitTypeCounter {
		return entry.Value >= max(target, 1)
	}
	return true
}

func (idx dayIndex) satisfied(day daykey.Key, habitType model.HabitType, target int) bool {
	entry, ok := idx[day]
	return ok && Satisfied(entry, habitType, target)
}

// ComputeStreak counts consecutive satisfied days ending at referenceDay,
// or at the day before when referenceDay itself is not yet satisfied.
func ComputeStreak(logs []model.LogEntry, habitType model.HabitType, target int, referenceDay daykey.Key) int {
	idx := indexLogs(logs)

	day := referenceDay
	if !idx.satisfied(day, habitType, target) {
		day = day.AddDays(-1)
		if !idx.satisfied(day, habitType, target) {
			return 0
		}
	}

	streak := 0
	for idx.satisfied(day, habitType, target) {
		streak++
		day = day.AddDays(-1)
	}
	return streak
}

// ComputeCompletionRate returns the percentage of satisfied days among the
// days-long window ending at referenceDay.
func ComputeCompletionRate(logs []model.LogEntry, habitType model.HabitType, target, days int, referenceDay daykey.Key) float64 {
	if days <= 0 {
		days = DefaultCompletionWindow
	}
	idx := indexLogs(logs)

	satisfied := 0
	for _, day := range daykey.Range(referenceDay.AddDays(-(days - 1)), referenceDay) {
		if idx.satisfied(day, habitType, target) {
			satisfied++
		}
	}
	return float64(satisfied) / float64(days) * 100
}

// CountCompletedToday counts habits whose entry for day satisfies them.
func CountCompletedToday(habits []model.Habit, logsByHabit map[string][]model.LogEntry, day daykey.Key) int {
	count := 0
	for _, h := range habits {
		for _, e := range logsByHabit[h.ID] {
			if e.Day == day && Satisfied(e, h.Type, h.Target()) {
				count++
				break
			}
		}
	}
	return count
}
