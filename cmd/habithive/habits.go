// ABOUTME: Session and habit subcommands: login, logout, habits, log, create, delete, heatmap, config
// ABOUTME: Each command reloads what it shows and prints through fatih/color and tabwriter

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
)

// cmdLogin signs in with a phone OTP or an Apple identity token
func cmdLogin(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	cred := gateway.Credential{
		Phone:        parsed.flag("phone"),
		OTP:          parsed.flag("otp"),
		AppleIDToken: parsed.flag("apple-token"),
		Nonce:        parsed.flag("nonce"),
	}
	if cred.Phone == "" && cred.AppleIDToken == "" {
		return fmt.Errorf("usage: login --phone <number> [--otp <code>] | --apple-token <jwt> [--nonce <nonce>]")
	}

	if !cred.IsApple() && cred.OTP == "" {
		if err := a.eng.SendOTP(ctx, cred.Phone); err != nil {
			return err
		}
		color.New(color.FgCyan).Printf("Code sent to %s. Enter it: ", cred.Phone)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			fmt.Println()
			if err := scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("no code entered")
		}
		cred.OTP = strings.TrimSpace(scanner.Text())
	}

	sess, err := a.eng.SignIn(ctx, cred)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Signed in as %s\n", sess.UserID)
	if !a.cfg.Session.Keyring.Enabled {
		color.Yellow("  keyring disabled: tokens are not stored for later commands")
	}
	return nil
}

// cmdLogout clears the session and stored tokens
func cmdLogout(a *app) error {
	if err := a.requireSession(); err != nil {
		fmt.Println("Not signed in.")
		return nil
	}
	a.eng.SignOut()
	color.Green("✓ Signed out")
	return nil
}

// loadHabits restores the session and reloads habits into the store
func loadHabits(ctx context.Context, a *app) error {
	if err := a.ready(ctx); err != nil {
		return err
	}
	return a.eng.Reload(ctx)
}

// resolveHabit finds a habit by ID or case-insensitive name
func resolveHabit(a *app, ref string) (model.Habit, error) {
	if ref == "" {
		return model.Habit{}, apperr.Validationf("habit", "name or ID required")
	}
	snap := a.store.Snapshot()
	if h, ok := snap.Habit(ref); ok {
		return h, nil
	}
	var matches []model.Habit
	for _, h := range snap.Habits {
		if strings.EqualFold(h.Name, ref) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Habit{}, apperr.Validationf("habit", "no habit named %q", ref)
	default:
		return model.Habit{}, apperr.Validationf("habit", "%d habits named %q, use the ID", len(matches), ref)
	}
}

// cmdHabits lists habits with today's progress
func cmdHabits(ctx context.Context, a *app) error {
	if err := loadHabits(ctx, a); err != nil {
		return err
	}
	ov := a.eng.Overview()

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Habits for %s  (%d/%d done)\n", ov.Today, ov.Completed, len(ov.Habits))
	cyan.Println("  ------------------------------------")

	if len(ov.Habits) == 0 {
		fmt.Println("  (no habits yet, try: habithive create --name Water)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  \tNAME\tTODAY\tSTREAK\t30D\tID")
	fmt.Fprintln(w, "  \t----\t-----\t------\t---\t--")
	for _, st := range ov.Habits {
		mark := color.HiBlackString("○")
		if st.DoneToday {
			mark = color.GreenString("●")
		} else if st.TodayValue > 0 {
			mark = color.YellowString("◐")
		}
		today := strconv.Itoa(st.TodayValue)
		if st.Habit.Type == model.HabitTypeCounter {
			today = fmt.Sprintf("%d/%d", st.TodayValue, st.Habit.Target())
		}
		fmt.Fprintf(w, "  %s\t%s %s\t%s\t%d\t%.0f%%\t%s\n",
			mark, st.Habit.Emoji, truncate(st.Habit.Name, 24), today, st.Streak, st.CompletionRate, st.Habit.ID)
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdLog toggles today's entry, or sets a counter's value when one is given
func cmdLog(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	if len(parsed.positional) < 1 {
		return fmt.Errorf("usage: log <habit> [value]")
	}
	if err := loadHabits(ctx, a); err != nil {
		return err
	}
	h, err := resolveHabit(a, parsed.arg(0))
	if err != nil {
		return err
	}

	var m *logstore.Mutation
	if raw := parsed.arg(1); raw != "" {
		value, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return fmt.Errorf("value must be a number, got %q", raw)
		}
		m, err = a.eng.LogToday(ctx, h.ID, value)
	} else {
		m, err = a.eng.ToggleToday(ctx, h.ID, 0)
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if m.Kind == logstore.KindDelete {
		green.Printf("✓ Cleared today's entry for %s\n", h.Name)
	} else {
		green.Printf("✓ Logged %d for %s\n", m.Value, h.Name)
	}

	st, err := a.eng.HabitStats(h.ID)
	if err == nil {
		fmt.Printf("  Streak: %d day(s)\n", st.Streak)
	}
	return nil
}

// cmdCreate creates a new habit
func cmdCreate(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	target, err := parsed.intFlag("target")
	if err != nil {
		return err
	}
	mask, err := parsed.intFlag("weekmask")
	if err != nil {
		return err
	}

	req := model.CreateHabitRequest{
		Name:          parsed.flag("name"),
		Emoji:         parsed.flag("emoji"),
		ColorHex:      parsed.flag("color"),
		Type:          model.HabitType(strings.ToLower(parsed.flag("type"))),
		TargetPerDay:  target,
		ScheduleDaily: mask == 0,
		ScheduleMask:  mask,
	}
	if req.Name == "" {
		req.Name = strings.Join(parsed.positional, " ")
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	h, err := a.eng.CreateHabit(ctx, req)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created habit: %s %s\n", h.Emoji, h.Name)
	fmt.Printf("  ID:      %s\n", h.ID)
	fmt.Printf("  Type:    %s\n", h.Type)
	fmt.Printf("  Target:  %d per day\n", h.Target())
	fmt.Printf("  Color:   %s\n", h.ColorHex)
	return nil
}

// cmdDelete deletes a habit and its logs
func cmdDelete(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <habit>")
	}
	if err := loadHabits(ctx, a); err != nil {
		return err
	}
	h, err := resolveHabit(a, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := a.eng.DeleteHabit(ctx, h.ID); err != nil {
		return err
	}
	color.Green("✓ Deleted habit: %s", h.Name)
	return nil
}

// cmdHeatmap renders a habit's recent weeks
func cmdHeatmap(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: heatmap <habit>")
	}
	if err := loadHabits(ctx, a); err != nil {
		return err
	}
	h, err := resolveHabit(a, strings.Join(args, " "))
	if err != nil {
		return err
	}
	st, err := a.eng.HabitStats(h.ID)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  %s %s  %s → %s\n", h.Emoji, h.Name, st.Heatmap.Start, st.Heatmap.End)
	fmt.Println()
	renderHeatmap(os.Stdout, st.Heatmap)
	fmt.Println()
	fmt.Printf("  Streak: %d day(s)   Last 30 days: %.0f%%\n", st.Streak, st.CompletionRate)
	fmt.Println()
	return nil
}

// cmdConfig prints the effective configuration
func cmdConfig(a *app) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cfg := a.cfg

	fmt.Println()
	cyan.Println("  Configuration")
	cyan.Println("  -------------")
	if a.cfgPath == "" {
		gray.Println("  (no config file, using defaults and environment)")
	} else {
		fmt.Printf("  File:             %s\n", a.cfgPath)
	}
	fmt.Printf("  Base URL:         %s\n", cfg.Gateway.BaseURL)
	fmt.Printf("  Timeout:          %s\n", cfg.Gateway.Timeout)
	fmt.Printf("  Refresh margin:   %s\n", cfg.Session.RefreshMargin)
	fmt.Printf("  Keyring:          %t (%s)\n", cfg.Session.Keyring.Enabled, cfg.Session.Keyring.Service)
	fmt.Printf("  Timezone:         %s (until the profile loads)\n", cfg.Calendar.Timezone)
	fmt.Printf("  Day starts at:    %02d:00\n", cfg.Calendar.DayStartHour)
	fmt.Printf("  Week starts on:   %s\n", cfg.Calendar.FirstWeekday)
	fmt.Printf("  History days:     %d\n", cfg.Sync.HistoryDays)
	fmt.Printf("  Heatmap weeks:    %d\n", cfg.Views.HeatmapWeeks)
	fmt.Printf("  Leaderboard size: %d\n", cfg.Views.LeaderboardSize)
	fmt.Printf("  Logging:          %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Printf("  Version:          %s\n", version)
	fmt.Println()
	return nil
}
