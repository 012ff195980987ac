// ABOUTME: Tests for CLI argument parsing, habit lookup, profile flags, activity text and heatmap rendering
// ABOUTME: Rendering is checked with color disabled so glyphs compare as plain text

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venkateshthallam/habithive/internal/aggregate"
	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
)

func TestParseArgs(t *testing.T) {
	parsed := parseArgs([]string{"Water", "--target", "8", "--type=counter", "extra", "--flag"})

	assert.Equal(t, []string{"Water", "extra"}, parsed.positional)
	assert.Equal(t, "8", parsed.flag("target"))
	assert.Equal(t, "counter", parsed.flag("type"))
	assert.Equal(t, "", parsed.flag("flag"))
	assert.Equal(t, "", parsed.arg(5))

	n, err := parsed.intFlag("target")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = parsed.intFlag("missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = parseArgs([]string{"--limit", "lots"}).intFlag("limit")
	assert.ErrorContains(t, err, "--limit")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a very...", truncate("a very long habit", 9))
}

func TestResolveHabit(t *testing.T) {
	store := logstore.New(nil)
	t.Cleanup(store.Close)
	a := &app{store: store}

	for _, h := range []model.Habit{
		{ID: "h1", Name: "Water", Type: model.HabitTypeCounter, TargetPerDay: 8, IsActive: true},
		{ID: "h2", Name: "Read", Type: model.HabitTypeCheckbox, IsActive: true},
		{ID: "h3", Name: "read", Type: model.HabitTypeCheckbox, IsActive: true},
	} {
		require.NoError(t, store.AddHabit(h))
	}

	h, err := resolveHabit(a, "h2")
	require.NoError(t, err)
	assert.Equal(t, "Read", h.Name)

	h, err = resolveHabit(a, "WATER")
	require.NoError(t, err)
	assert.Equal(t, "h1", h.ID)

	_, err = resolveHabit(a, "read")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorContains(t, err, "use the ID")

	_, err = resolveHabit(a, "Run")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = resolveHabit(a, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRenderHeatmap(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	ref := daykey.MustParse("2025-06-04")
	logs := []model.LogEntry{
		{HabitID: "h1", Day: ref, Value: 8},
		{HabitID: "h1", Day: ref.AddDays(-1), Value: 2},
	}
	grid := aggregate.ComputeHeatmapGrid(logs, model.HabitTypeCounter, 8, 2, ref)

	var buf bytes.Buffer
	renderHeatmap(&buf, grid)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "S M T W T F S")
	assert.Contains(t, lines[1], "2025-05-25")
	assert.Equal(t, 7, strings.Count(lines[1], "⬡"))
	// Sun and Mon empty, Tue partial, Wed full, Thu..Sat future.
	assert.True(t, strings.HasSuffix(lines[2], "⬡ ⬡ ⬡ ⬢ · · ·"), lines[2])
}

func TestRenderHeatmap_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderHeatmap(&buf, aggregate.HeatmapGrid{})
	assert.Empty(t, buf.String())
}

func TestProfileUpdate(t *testing.T) {
	upd, err := profileUpdate(parseArgs(nil))
	require.NoError(t, err)
	assert.True(t, upd.Empty())

	upd, err = profileUpdate(parseArgs([]string{"--timezone", "Europe/Berlin", "--day-start=0"}))
	require.NoError(t, err)
	require.NotNil(t, upd.Timezone)
	assert.Equal(t, "Europe/Berlin", *upd.Timezone)
	require.NotNil(t, upd.DayStartHour)
	assert.Equal(t, 0, *upd.DayStartHour)
	assert.Nil(t, upd.DisplayName)
	assert.Nil(t, upd.Theme)

	_, err = profileUpdate(parseArgs([]string{"--day-start", "dawn"}))
	assert.ErrorContains(t, err, "--day-start")
}

func TestDescribeActivity(t *testing.T) {
	assert.Equal(t, "Ada completed today",
		describeActivity(model.ActivityEvent{ActorID: "u1", ActorName: "Ada", Type: model.ActivityHabitCompleted}))
	assert.Equal(t, "u2 joined the hive",
		describeActivity(model.ActivityEvent{ActorID: "u2", Type: model.ActivityHiveJoined}))
	assert.Equal(t, "Ada reached a 7-day streak",
		describeActivity(model.ActivityEvent{ActorName: "Ada", Type: model.ActivityStreakMilestone, Data: map[string]any{"days": 7}}))
}
