// ABOUTME: Calendar heatmap (honeycomb) grid for one habit
// ABOUTME: Rows are weeks ending with the week containing the reference day

package aggregate

import (
	"time"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// DefaultHeatmapWeeks is used when weeksToShow is not positive.
const DefaultHeatmapWeeks = 5

// CellState classifies one heatmap day.
type CellState string

const (
	CellFuture  CellState = "future"
	CellFull    CellState = "full"
	CellPartial CellState = "partial"
	CellEmpty   CellState = "empty"
)

// MaxIntensity is the intensity of a full cell.
const MaxIntensity = 4

// HeatmapCell is one day in the grid.
// Intensity grades the cell from 0 (nothing) to MaxIntensity (full).
type HeatmapCell struct {
	Day       daykey.Key
	State     CellState
	Value     int
	Intensity int
	IsToday   bool
}

// HeatmapGrid is weeksToShow rows of 7 cells.
type HeatmapGrid struct {
	Start daykey.Key
	End   daykey.Key
	Weeks [][7]HeatmapCell
}

// Cells returns the grid flattened in day order.
func (g HeatmapGrid) Cells() []HeatmapCell {
	cells := make([]HeatmapCell, 0, len(g.Weeks)*7)
	for _, week := range g.Weeks {
		cells = append(cells, week[:]...)
	}
	return cells
}

// ComputeHeatmapGrid builds a grid whose weeks start on Sunday.
func ComputeHeatmapGrid(logs []model.LogEntry, habitType model.HabitType, target, weeksToShow int, referenceDay daykey.Key) HeatmapGrid {
	return ComputeHeatmapGridFrom(time.Sunday, logs, habitType, target, weeksToShow, referenceDay)
}

// ComputeHeatmapGridFrom builds a grid whose weeks start on firstWeekday.
func ComputeHeatmapGridFrom(firstWeekday time.Weekday, logs []model.LogEntry, habitType model.HabitType, target, weeksToShow int, referenceDay daykey.Key) HeatmapGrid {
	if weeksToShow <= 0 {
		weeksToShow = DefaultHeatmapWeeks
	}
	target = max(target, 1)
	idx := indexLogs(logs)

	start := referenceDay.WeekStart(firstWeekday).AddDays(-7 * (weeksToShow - 1))
	grid := HeatmapGrid{
		Start: start,
		End:   start.AddDays(7*weeksToShow - 1),
		Weeks: make([][7]HeatmapCell, weeksToShow),
	}

	for w := range weeksToShow {
		for d := range 7 {
			day := start.AddDays(w*7 + d)
			cell := HeatmapCell{Day: day, IsToday: day == referenceDay}
			entry, ok := idx[day]
			if ok {
				cell.Value = entry.Value
			}
			switch {
			case day.After(referenceDay):
				cell.State = CellFuture
			case ok && Satisfied(entry, habitType, target):
				cell.State = CellFull
				cell.Intensity = MaxIntensity
			case ok && habitType == model.HabitTypeCounter && entry.Value > 0:
				cell.State = CellPartial
				cell.Intensity = partialIntensity(entry.Value, target)
			default:
				cell.State = CellEmpty
			}
			grid.Weeks[w][d] = cell
		}
	}
	return grid
}

// partialIntensity grades 0 < value < target into 1..3.
func partialIntensity(value, target int) int {
	ratio := float64(value) / float64(target)
	switch {
	case ratio >= 0.75:
		return 3
	case ratio >= 0.5:
		return 2
	default:
		return 1
	}
}
