// ABOUTME: Profile and activity subcommands
// ABOUTME: profile shows or patches account settings, activity lists recent hive events

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/venkateshthallam/habithive/internal/model"
)

// profileUpdate builds an update from the flags that were given.
func profileUpdate(parsed cmdArgs) (model.ProfileUpdate, error) {
	var upd model.ProfileUpdate
	if v, ok := parsed.flags["name"]; ok {
		upd.DisplayName = &v
	}
	if v, ok := parsed.flags["avatar"]; ok {
		upd.AvatarURL = &v
	}
	if v, ok := parsed.flags["timezone"]; ok {
		upd.Timezone = &v
	}
	if v, ok := parsed.flags["theme"]; ok {
		upd.Theme = &v
	}
	if _, ok := parsed.flags["day-start"]; ok {
		hour, err := parsed.intFlag("day-start")
		if err != nil {
			return upd, err
		}
		upd.DayStartHour = &hour
	}
	return upd, nil
}

// cmdProfile prints the profile, updating it first when flags are given
func cmdProfile(ctx context.Context, a *app, args []string) error {
	upd, err := profileUpdate(parseArgs(args))
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	var p model.Profile
	if upd.Empty() {
		p, err = a.eng.Profile(ctx)
	} else {
		p, err = a.eng.UpdateProfile(ctx, upd)
		if err == nil {
			color.Green("✓ Profile updated")
		}
	}
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Profile")
	cyan.Println("  -------")
	fmt.Printf("  Name:           %s\n", p.DisplayName)
	if p.AvatarURL != "" {
		fmt.Printf("  Avatar:         %s\n", p.AvatarURL)
	}
	fmt.Printf("  Timezone:       %s\n", p.Timezone)
	fmt.Printf("  Day starts at:  %02d:00\n", p.DayStartHour)
	fmt.Printf("  Theme:          %s\n", p.Theme)
	fmt.Printf("  Today:          %s\n", a.eng.Today())
	fmt.Println()
	return nil
}

// cmdActivity lists recent events across hives, or for one hive
func cmdActivity(ctx context.Context, a *app, args []string) error {
	parsed := parseArgs(args)
	limit, err := parsed.intFlag("limit")
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	events, err := a.eng.ActivityFeed(ctx, parsed.flag("hive"), limit)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Activity")
	cyan.Println("  --------")

	if len(events) == 0 {
		fmt.Println("  (nothing yet)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(w, "  %s\t%s\t%s\n",
			color.HiBlackString(ev.CreatedAt.Local().Format("Jan 2 15:04")), describeActivity(ev), ev.HiveID)
	}
	w.Flush()
	fmt.Println()
	return nil
}

// describeActivity renders an event as a short sentence.
func describeActivity(ev model.ActivityEvent) string {
	who := ev.ActorName
	if who == "" {
		who = ev.ActorID
	}
	switch ev.Type {
	case model.ActivityHabitCompleted:
		return who + " completed today"
	case model.ActivityStreakMilestone:
		if days, ok := ev.Data["days"]; ok {
			return fmt.Sprintf("%s reached a %v-day streak", who, days)
		}
		return who + " reached a streak milestone"
	case model.ActivityHiveJoined:
		return who + " joined the hive"
	case model.ActivityHiveAdvanced:
		return "the hive streak grew"
	case model.ActivityHiveBroken:
		return "the hive streak was broken"
	default:
		return fmt.Sprintf("%s: %s", who, ev.Type)
	}
}
