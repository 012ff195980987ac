// ABOUTME: Terminal rendering for heatmap grids and hive member status
// ABOUTME: Uses fatih/color glyphs so output degrades cleanly when NO_COLOR is set

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/venkateshthallam/habithive/internal/aggregate"
)

// cellGlyph returns the colored glyph for one heatmap cell.
func cellGlyph(c aggregate.HeatmapCell) string {
	var g string
	switch c.State {
	case aggregate.CellFuture:
		return color.New(color.Faint).Sprint("·")
	case aggregate.CellFull:
		g = color.GreenString("⬢")
	case aggregate.CellPartial:
		switch {
		case c.Intensity >= 3:
			g = color.HiYellowString("⬢")
		case c.Intensity == 2:
			g = color.YellowString("⬢")
		default:
			g = color.YellowString("⬡")
		}
	default:
		g = color.HiBlackString("⬡")
	}
	if c.IsToday {
		return color.New(color.Underline).Sprint(g)
	}
	return g
}

// renderHeatmap writes one row per week with weekday initials on top.
func renderHeatmap(w io.Writer, grid aggregate.HeatmapGrid) {
	if len(grid.Weeks) == 0 {
		return
	}
	var header []string
	for _, c := range grid.Weeks[0] {
		header = append(header, c.Day.Weekday().String()[:1])
	}
	fmt.Fprintf(w, "             %s\n", color.HiBlackString(strings.Join(header, " ")))

	for _, week := range grid.Weeks {
		glyphs := make([]string, 0, len(week))
		for _, c := range week {
			glyphs = append(glyphs, cellGlyph(c))
		}
		fmt.Fprintf(w, "  %s   %s\n", color.HiBlackString(week[0].Day.String()), strings.Join(glyphs, " "))
	}
}

func statusGlyph(s aggregate.MemberStatus) string {
	switch s {
	case aggregate.StatusCompleted:
		return color.GreenString("✓")
	case aggregate.StatusPartial:
		return color.YellowString("◐")
	default:
		return color.HiBlackString("○")
	}
}
