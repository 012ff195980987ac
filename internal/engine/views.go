// ABOUTME: Derived per-habit views computed from store snapshots on demand
// ABOUTME: Nothing here is cached; every call recomputes from the current snapshot

package engine

import (
	"github.com/venkateshthallam/habithive/internal/aggregate"
	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
)

// HabitStats is the derived view of one habit.
type HabitStats struct {
	Habit          model.Habit
	Today          daykey.Key
	TodayValue     int
	DoneToday      bool
	Pending        bool
	Streak         int
	CompletionRate float64
	Heatmap        aggregate.HeatmapGrid
}

// Overview is the day's habit list with completion counts.
type Overview struct {
	Today     daykey.Key
	Habits    []HabitStats
	Completed int
}

// HabitStats computes streak, completion rate and heatmap for a habit.
func (e *Engine) HabitStats(habitID string) (HabitStats, error) {
	snap := e.store.Snapshot()
	h, ok := snap.Habit(habitID)
	if !ok {
		return HabitStats{}, apperr.Validationf("habit_id", "unknown habit %q", habitID)
	}
	return e.stats(snap, h, e.Today()), nil
}

// Overview computes stats for every habit in the store.
func (e *Engine) Overview() Overview {
	snap := e.store.Snapshot()
	today := e.Today()

	ov := Overview{Today: today, Habits: make([]HabitStats, 0, len(snap.Habits))}
	for _, h := range snap.Habits {
		ov.Habits = append(ov.Habits, e.stats(snap, h, today))
	}
	ov.Completed = aggregate.CountCompletedToday(snap.Habits, snap.Logs, today)
	return ov
}

func (e *Engine) stats(snap logstore.Snapshot, h model.Habit, today daykey.Key) HabitStats {
	logs := snap.Logs[h.ID]
	target := h.Target()

	st := HabitStats{
		Habit:          h,
		Today:          today,
		Streak:         aggregate.ComputeStreak(logs, h.Type, target, today),
		CompletionRate: aggregate.ComputeCompletionRate(logs, h.Type, target, aggregate.DefaultCompletionWindow, today),
		Heatmap:        aggregate.ComputeHeatmapGridFrom(e.Calendar().FirstWeekday, logs, h.Type, target, e.heatmapWeeks, today),
	}
	if entry, ok := snap.Entry(h.ID, today); ok {
		st.TodayValue = entry.Value
		st.DoneToday = aggregate.Satisfied(entry, h.Type, target)
		st.Pending = !entry.Confirmed()
	}
	return st
}
