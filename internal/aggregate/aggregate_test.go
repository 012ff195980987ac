// ABOUTME: Tests for streaks, completion rates, heatmap grids, hive status and leaderboards
// ABOUTME: All inputs are literal so results do not depend on wall-clock time

package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// 2025-06-04 is a Wednesday.
var ref = daykey.MustParse("2025-06-04")

func entries(values map[int]int) []model.LogEntry {
	var logs []model.LogEntry
	for offset, v := range values {
		logs = append(logs, model.LogEntry{HabitID: "h1", Day: ref.AddDays(offset), Value: v})
	}
	return logs
}

func TestComputeStreak_Counter(t *testing.T) {
	tests := []struct {
		name string
		logs map[int]int
		want int
	}{
		{"today only", map[int]int{0: 8}, 1},
		{"yesterday and today", map[int]int{-1: 8, 0: 8}, 2},
		{"gap breaks streak", map[int]int{-2: 8, 0: 8}, 1},
		{"today unmet counts from yesterday", map[int]int{-2: 8, -1: 9, 0: 3}, 2},
		{"nothing yesterday or today", map[int]int{-2: 8, -3: 8}, 0},
		{"below target", map[int]int{0: 7}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStreak(entries(tt.logs), model.HabitTypeCounter, 8, ref))
		})
	}
}

func TestComputeStreak_CheckboxCountsExistingEntries(t *testing.T) {
	logs := entries(map[int]int{-2: 1, -1: 0, 0: 1})
	assert.Equal(t, 3, ComputeStreak(logs, model.HabitTypeCheckbox, 1, ref))
}

func TestComputeStreak_ZeroTargetTreatedAsOne(t *testing.T) {
	logs := entries(map[int]int{-1: 1, 0: 1})
	assert.Equal(t, 2, ComputeStreak(logs, model.HabitTypeCounter, 0, ref))
}

func TestComputeStreak_AddingEntryNeverShortens(t *testing.T) {
	base := map[int]int{-4: 8, -3: 8, -1: 8}
	before := ComputeStreak(entries(base), model.HabitTypeCounter, 8, ref)

	for offset := -6; offset <= 0; offset++ {
		grown := map[int]int{offset: 8}
		for k, v := range base {
			grown[k] = v
		}
		after := ComputeStreak(entries(grown), model.HabitTypeCounter, 8, ref)
		assert.GreaterOrEqual(t, after, before, "offset %d", offset)
	}
}

func TestComputeCompletionRate(t *testing.T) {
	logs := entries(map[int]int{0: 8, -1: 4, -2: 8, -9: 8})

	assert.InDelta(t, 50.0, ComputeCompletionRate(logs, model.HabitTypeCounter, 8, 4, ref), 0.001)
	assert.InDelta(t, 30.0, ComputeCompletionRate(logs, model.HabitTypeCounter, 8, 10, ref), 0.001)
	assert.InDelta(t, 10.0, ComputeCompletionRate(logs, model.HabitTypeCounter, 8, 0, ref), 0.001, "default window is 30 days")
	assert.InDelta(t, 75.0, ComputeCompletionRate(logs, model.HabitTypeCheckbox, 1, 4, ref), 0.001)
}

func TestCountCompletedToday(t *testing.T) {
	habits := []model.Habit{
		{ID: "read", Type: model.HabitTypeCheckbox},
		{ID: "water", Type: model.HabitTypeCounter, TargetPerDay: 8},
		{ID: "steps", Type: model.HabitTypeCounter, TargetPerDay: 3},
		{ID: "yoga", Type: model.HabitTypeCheckbox},
	}
	logs := map[string][]model.LogEntry{
		"read":  {{HabitID: "read", Day: ref, Value: 1}},
		"water": {{HabitID: "water", Day: ref, Value: 5}},
		"steps": {{HabitID: "steps", Day: ref.AddDays(-1), Value: 3}, {HabitID: "steps", Day: ref, Value: 4}},
		"yoga":  {{HabitID: "yoga", Day: ref.AddDays(-1), Value: 1}},
	}
	assert.Equal(t, 2, CountCompletedToday(habits, logs, ref))
}

func TestComputeHeatmapGrid_Layout(t *testing.T) {
	grid := ComputeHeatmapGrid(nil, model.HabitTypeCheckbox, 1, 0, ref)

	require.Len(t, grid.Weeks, DefaultHeatmapWeeks)
	assert.Equal(t, daykey.MustParse("2025-05-04"), grid.Start)
	assert.Equal(t, daykey.MustParse("2025-06-07"), grid.End)

	cells := grid.Cells()
	require.Len(t, cells, 35)
	for i, c := range cells {
		assert.Equal(t, grid.Start.AddDays(i), c.Day)
		assert.Equal(t, time.Sunday, grid.Weeks[i/7][0].Day.Weekday())
	}

	last := grid.Weeks[4]
	assert.True(t, last[3].IsToday)
	assert.Equal(t, CellEmpty, last[3].State)
	assert.Equal(t, CellFuture, last[4].State)
	assert.Equal(t, CellFuture, last[6].State)
	assert.Equal(t, 0, last[6].Intensity)
}

func TestComputeHeatmapGrid_FirstWeekday(t *testing.T) {
	grid := ComputeHeatmapGridFrom(time.Monday, nil, model.HabitTypeCheckbox, 1, 2, ref)

	require.Len(t, grid.Weeks, 2)
	assert.Equal(t, daykey.MustParse("2025-05-26"), grid.Start)
	assert.Equal(t, time.Monday, grid.Start.Weekday())
	assert.True(t, grid.Weeks[1][2].IsToday)
}

func TestComputeHeatmapGrid_CounterIntensity(t *testing.T) {
	logs := entries(map[int]int{0: 8, -1: 6, -2: 4, -3: 1, 1: 8})
	grid := ComputeHeatmapGrid(logs, model.HabitTypeCounter, 8, 1, ref)
	week := grid.Weeks[0]

	tests := []struct {
		idx       int
		state     CellState
		intensity int
	}{
		{0, CellPartial, 1}, // Sunday, 1/8
		{1, CellPartial, 2}, // Monday, 4/8
		{2, CellPartial, 3}, // Tuesday, 6/8
		{3, CellFull, MaxIntensity},
		{4, CellFuture, 0},
		{5, CellFuture, 0},
	}
	for _, tt := range tests {
		cell := week[tt.idx]
		assert.Equal(t, tt.state, cell.State, cell.Day)
		assert.Equal(t, tt.intensity, cell.Intensity, cell.Day)
	}
	assert.Equal(t, 8, week[4].Value, "future cells still carry their value")
}

func TestComputeHeatmapGrid_Checkbox(t *testing.T) {
	logs := entries(map[int]int{0: 1, -2: 0})
	week := ComputeHeatmapGrid(logs, model.HabitTypeCheckbox, 1, 1, ref).Weeks[0]

	assert.Equal(t, CellFull, week[3].State)
	assert.Equal(t, MaxIntensity, week[3].Intensity)
	assert.Equal(t, CellFull, week[1].State, "an entry alone completes a checkbox day")
	assert.Equal(t, CellEmpty, week[2].State)
}

func hiveFixture() model.HiveDetail {
	return model.HiveDetail{
		Hive: model.Hive{ID: "hv1", Name: "Runners", TargetPerDay: 1},
		Members: []model.HiveMember{
			{UserID: "u1", DisplayName: "Ada"},
			{UserID: "u2", DisplayName: "Bo"},
			{UserID: "u3", DisplayName: "Cy"},
		},
		MemberDays: []model.HiveMemberDay{
			{UserID: "u1", Day: ref, Value: 1},
			{UserID: "u2", Day: ref, Value: 0},
			{UserID: "u3", Day: ref, Value: 1},
			{UserID: "u2", Day: ref.AddDays(-1), Value: 1},
			{UserID: "stranger", Day: ref, Value: 1},
		},
		Target: 1,
	}
}

func TestComputeHiveTodayStatus(t *testing.T) {
	h := hiveFixture()
	status := ComputeHiveTodayStatus(h.Members, h.MemberDays, ref, h.Target)

	assert.Equal(t, 2, status.Completed)
	assert.Equal(t, 0, status.Partial)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 3, status.Total())
	assert.Equal(t, 67, status.RoundedRate())
	assert.Equal(t, StatusPending, status.StatusOf("u2"))
	assert.Equal(t, StatusCompleted, status.StatusOf("u3"))
	assert.Equal(t, StatusPending, status.StatusOf("stranger"))

	require.Len(t, status.Members, 3)
	assert.Equal(t, "Ada", status.Members[0].DisplayName)
}

func TestComputeHiveTodayStatus_PartialAndEmpty(t *testing.T) {
	members := []model.HiveMember{{UserID: "u1"}, {UserID: "u2"}}
	days := []model.HiveMemberDay{
		{UserID: "u1", Day: ref, Value: 2},
		{UserID: "u2", Day: ref, Value: 6},
	}
	status := ComputeHiveTodayStatus(members, days, ref, 4)
	assert.Equal(t, 1, status.Partial)
	assert.Equal(t, 1, status.Completed)
	assert.InDelta(t, 75.0, status.CompletionRate, 0.001, "over-target values cap at 1")

	empty := ComputeHiveTodayStatus(nil, nil, ref, 4)
	assert.Zero(t, empty.CompletionRate)
	assert.Zero(t, empty.Total())
}

func TestComputeHiveTodayStatus_DuplicateMemberCountsOnce(t *testing.T) {
	members := []model.HiveMember{
		{UserID: "u1", DisplayName: "Ada"},
		{UserID: "u2", DisplayName: "Bo"},
		{UserID: "u1", DisplayName: "Ada"},
	}
	days := []model.HiveMemberDay{{UserID: "u1", Day: ref, Value: 1}}

	status := ComputeHiveTodayStatus(members, days, ref, 1)
	assert.Equal(t, 2, status.Total())
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 50, status.RoundedRate())

	board := ComputeLeaderboard([]model.HiveDetail{{Target: 1, Members: members, MemberDays: days}}, ref, 5)
	require.Len(t, board, 2)
	assert.Equal(t, LeaderboardEntry{UserID: "u1", DisplayName: "Ada", CompletedToday: 1, TotalHives: 1}, board[0])
}

func TestComputeLeaderboard(t *testing.T) {
	first := hiveFixture()
	second := model.HiveDetail{
		Hive: model.Hive{ID: "hv2", TargetPerDay: 2},
		Members: []model.HiveMember{
			{UserID: "u2", DisplayName: "Bo"},
			{UserID: "u4", DisplayName: "Al"},
		},
		MemberDays: []model.HiveMemberDay{
			{UserID: "u2", Day: ref, Value: 2},
			{UserID: "u4", Day: ref, Value: 1},
		},
	}

	board := ComputeLeaderboard([]model.HiveDetail{first, second}, ref, 0)
	require.Len(t, board, 4)

	var order []string
	for _, e := range board {
		order = append(order, e.UserID)
	}
	// u1, u2, u3 each completed one hive; ties break on display name.
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, order)
	assert.Equal(t, LeaderboardEntry{UserID: "u2", DisplayName: "Bo", CompletedToday: 1, TotalHives: 2}, board[1])
	assert.Equal(t, 0, board[3].CompletedToday)

	assert.Len(t, ComputeLeaderboard([]model.HiveDetail{first, second}, ref, 2), 2)
}

func TestComputeLeaderboard_TieBreaksOnUserID(t *testing.T) {
	h := model.HiveDetail{
		Target:  1,
		Members: []model.HiveMember{{UserID: "b", DisplayName: "Sam"}, {UserID: "a", DisplayName: "Sam"}},
	}
	board := ComputeLeaderboard([]model.HiveDetail{h}, ref, 5)
	require.Len(t, board, 2)
	assert.Equal(t, "a", board[0].UserID)
	assert.Equal(t, "b", board[1].UserID)
}
