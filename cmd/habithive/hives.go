// ABOUTME: Hive subcommands: hives, hive (show, log, create, delete), join, invite, leaderboard
// ABOUTME: Shows today's member status and ranks members across hives

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/engine"
	"github.com/venkateshthallam/habithive/internal/model"
)

func cmdHives(ctx context.Context, a *app) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	hives, err := a.eng.ListHives(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Hives")
	cyan.Println("  -----")

	if len(hives) == 0 {
		fmt.Println("  (none yet, join one with: habithive join <code>)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tMEMBERS\tTARGET\tSTREAK\tID")
	fmt.Fprintln(w, "  ----\t-------\t------\t------\t--")
	for _, h := range hives {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%s\n",
			truncate(h.Name, 28), h.MemberCount, max(h.TargetPerDay, 1), h.CurrentLength, h.ID)
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdHive shows today's status for one hive, or logs to it with "log [value]"
func cmdHive(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	hiveID := parsed.arg(0)
	switch hiveID {
	case "":
		return fmt.Errorf("usage: hive <id> [log [value]] | hive create <habit> | hive delete <id>")
	case "create":
		return cmdHiveCreate(ctx, a, parsed)
	case "delete":
		return cmdHiveDelete(ctx, a, parsed)
	}
	if err := a.ready(ctx); err != nil {
		return err
	}
	detail, err := a.eng.LoadHive(ctx, hiveID)
	if err != nil {
		return err
	}

	if parsed.arg(1) == "log" {
		value := detail.Target
		if raw := parsed.arg(2); raw != "" {
			if value, err = strconv.Atoi(raw); err != nil {
				return fmt.Errorf("value must be a number, got %q", raw)
			}
		}
		if _, err := a.eng.LogHiveToday(ctx, hiveID, max(value, 1)); err != nil {
			return err
		}
		color.Green("✓ Logged today in %s", detail.Hive.Name)
	} else if parsed.arg(1) != "" {
		return fmt.Errorf("unknown hive action: %s", parsed.arg(1))
	}

	status, err := a.eng.HiveStatus(hiveID)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  %s  (%s)\n", detail.Hive.Name, status.Day)
	cyan.Println("  ------------------------------------")
	fmt.Printf("  %d/%d done   %d partial   %d pending   %d%% complete\n",
		status.Completed, status.Total(), status.Partial, status.Pending, status.RoundedRate())
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, m := range status.Members {
		name := m.DisplayName
		if name == "" {
			name = m.UserID
		}
		if m.UserID == a.mgr.UserID() {
			name += " (you)"
		}
		fmt.Fprintf(w, "  %s\t%s\t%d/%d\n", statusGlyph(m.Status), name, m.Value, status.Target)
	}
	w.Flush()

	if len(detail.RecentActivity) > 0 {
		fmt.Println()
		gray := color.New(color.FgHiBlack)
		for _, ev := range detail.RecentActivity[:min(len(detail.RecentActivity), 5)] {
			gray.Printf("  %s  %s\n", ev.CreatedAt.Local().Format("Jan 2 15:04"), describeActivity(ev))
		}
	}
	fmt.Println()
	return nil
}

// cmdHiveCreate starts a hive from one of the user's habits
func cmdHiveCreate(ctx context.Context, a *app, parsed cmdArgs) error {
	ref := strings.Join(parsed.positional[1:], " ")
	if ref == "" {
		return fmt.Errorf("usage: hive create <habit> [--name <n>] [--backfill N]")
	}
	backfill := engine.DefaultBackfillDays
	if _, ok := parsed.flags["backfill"]; ok {
		n, err := parsed.intFlag("backfill")
		if err != nil {
			return err
		}
		backfill = n
	}
	if err := loadHabits(ctx, a); err != nil {
		return err
	}
	h, err := resolveHabit(a, ref)
	if err != nil {
		return err
	}

	hive, err := a.eng.CreateHiveFromHabit(ctx, model.HiveFromHabitRequest{
		HabitID:      h.ID,
		Name:         parsed.flag("name"),
		BackfillDays: backfill,
	})
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen)
	green.Printf("✓ Created hive: %s\n", hive.Name)
	fmt.Printf("  ID:       %s\n", hive.ID)
	fmt.Printf("  Backfill: %d day(s)\n", backfill)
	fmt.Printf("  Invite friends with: habithive invite %s\n", hive.ID)
	return nil
}

func cmdHiveDelete(ctx context.Context, a *app, parsed cmdArgs) error {
	hiveID := parsed.arg(1)
	if hiveID == "" {
		return fmt.Errorf("usage: hive delete <id>")
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.eng.DeleteHive(ctx, hiveID); err != nil {
		return err
	}
	color.Green("✓ Deleted hive %s", hiveID)
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: join <code>")
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	res, err := a.eng.JoinHive(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		color.Yellow("%s", res.Message)
		return nil
	}
	color.Green("✓ Joined hive %s", res.HiveID)
	if res.Message != "" {
		fmt.Printf("  %s\n", res.Message)
	}
	return nil
}

func cmdInvite(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	hiveID := parsed.arg(0)
	if hiveID == "" {
		return fmt.Errorf("usage: invite <hive-id> [--ttl 24h] [--max-uses N]")
	}

	var ttl time.Duration
	if raw := parsed.flag("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return apperr.Validationf("ttl", "invalid duration %q", raw)
		}
		ttl = d
	}
	maxUses, err := parsed.intFlag("max-uses")
	if err != nil {
		return err
	}

	if err := a.requireSession(); err != nil {
		return err
	}
	inv, err := a.eng.CreateInvite(ctx, hiveID, ttl, maxUses)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Invite code: %s\n", inv.Code)
	fmt.Printf("  Expires:  %s\n", inv.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Printf("  Max uses: %d\n", inv.MaxUses)
	return nil
}

func cmdLeaderboard(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	limit, err := parsed.intFlag("limit")
	if err != nil {
		return err
	}
	if err := a.ready(ctx); err != nil {
		return err
	}
	entries, err := a.eng.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Leaderboard  (%s)\n", a.eng.Today())
	cyan.Println("  ----------------------")

	if len(entries) == 0 {
		fmt.Println("  (no hive members yet)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tMEMBER\tDONE TODAY")
	for i, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(w, "  %d\t%s\t%d/%d\n", i+1, name, e.CompletedToday, e.TotalHives)
	}
	w.Flush()
	fmt.Println()
	return nil
}
