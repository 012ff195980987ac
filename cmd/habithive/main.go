// ABOUTME: Command-line front end for habithive: habits, heatmaps, hives and leaderboards
// ABOUTME: Wires config, session, HTTP gateway, local store and engine, then dispatches a subcommand

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/config"
	"github.com/venkateshthallam/habithive/internal/engine"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/session"
)

var version = "dev"

const banner = `
 _           _     _ _   _     _
| |__   __ _| |__ (_) |_| |__ (_)_   _____
| '_ \ / _' | '_ \| | __| '_ \| \ \ / / _ \
| | | | (_| | |_) | | |_| | | | |\ V /  __/
|_| |_|\__,_|_.__/|_|\__|_| |_|_| \_/ \___|
`

// app holds the wired components for one invocation.
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
	mgr     *session.Manager
	store   *logstore.Store
	eng     *engine.Engine
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}
	if cmd == "version" {
		fmt.Println(version)
		return
	}

	a, err := newApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.store.Close()

	switch cmd {
	case "login":
		err = cmdLogin(ctx, a, args)
	case "logout":
		err = cmdLogout(a)
	case "habits":
		err = cmdHabits(ctx, a)
	case "log":
		err = cmdLog(ctx, a, args)
	case "create":
		err = cmdCreate(ctx, a, args)
	case "delete":
		err = cmdDelete(ctx, a, args)
	case "heatmap":
		err = cmdHeatmap(ctx, a, args)
	case "hives":
		err = cmdHives(ctx, a)
	case "hive":
		err = cmdHive(ctx, a, args)
	case "join":
		err = cmdJoin(ctx, a, args)
	case "invite":
		err = cmdInvite(ctx, a, args)
	case "leaderboard":
		err = cmdLeaderboard(ctx, a, args)
	case "activity":
		err = cmdActivity(ctx, a, args)
	case "profile":
		err = cmdProfile(ctx, a, args)
	case "config":
		err = cmdConfig(a)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if apperr.IsUnauthorized(err) {
			color.Red("Error: not signed in or session expired. Run: habithive login --phone <number>\n")
		} else {
			color.Red("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: habithive <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login --phone <number> [--otp <code>]   Sign in with a one-time code")
	fmt.Println("  login --apple-token <jwt> [--nonce <n>] Sign in with an Apple identity token")
	fmt.Println("  logout                                  Sign out and forget stored tokens")
	fmt.Println("  habits                                  List habits with today's progress")
	fmt.Println("  log <habit> [value]                     Toggle today, or set a counter's value")
	fmt.Println("  create --name <n> [--type counter] [--target N] [--emoji e] [--color #RRGGBB]")
	fmt.Println("  delete <habit>                          Delete a habit and its logs")
	fmt.Println("  heatmap <habit>                         Show the habit's recent weeks")
	fmt.Println("  hives                                   List your hives")
	fmt.Println("  hive <id> [log [value]]                 Show today's hive status, or log to it")
	fmt.Println("  hive create <habit> [--name n] [--backfill N]  Start a hive from a habit")
	fmt.Println("  hive delete <id>                        Delete a hive you own")
	fmt.Println("  join <code>                             Join a hive with an invite code")
	fmt.Println("  invite <hive-id> [--ttl 24h] [--max-uses N]")
	fmt.Println("  leaderboard [--limit N]                 Rank hive members by hives completed today")
	fmt.Println("  activity [--hive <id>] [--limit N]      Show recent activity in your hives")
	fmt.Println("  profile [--name n] [--timezone tz] [--day-start H] [--theme honey|mint|night]")
	fmt.Println("  config                                  Show the effective configuration")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HABITHIVE_CONFIG          Config file path (default: $XDG_CONFIG_HOME/habithive/config.yaml)")
	fmt.Println("  HABITHIVE_GATEWAY_BASE_URL  API base URL, overrides the config file")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  habithive login --phone +15551234567")
	fmt.Println("  habithive create --name Water --type counter --target 8")
	fmt.Println("  habithive log Water 3")
	fmt.Println("  habithive heatmap Water")
	fmt.Println()
}

// loadConfig reads the config file, falling back to defaults plus env
// overrides when the default location has no file.
func loadConfig() (*config.Config, string, error) {
	path := config.DefaultPath()
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && os.Getenv("HABITHIVE_CONFIG") == "" {
		cfg, err = config.Load("")
		path = ""
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func newApp() (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	cal, err := cfg.NewCalendar()
	if err != nil {
		return nil, err
	}

	client := gateway.NewHTTPClient(cfg.Gateway.BaseURL, &http.Client{Timeout: cfg.Gateway.Timeout}, logger)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithRefreshMargin(cfg.Session.RefreshMargin),
	}
	if cfg.Session.Keyring.Enabled {
		opts = append(opts, session.WithTokenStore(session.NewKeyringStore(cfg.Session.Keyring.Service, "")))
	}
	mgr := session.NewManager(client, opts...)
	client.SetAuthorizer(mgr)

	store := logstore.New(logger)
	eng := engine.New(engine.Options{
		Gateway:         client,
		Session:         mgr,
		Store:           store,
		Calendar:        cal,
		HistoryDays:     cfg.Sync.HistoryDays,
		HeatmapWeeks:    cfg.Views.HeatmapWeeks,
		LeaderboardSize: cfg.Views.LeaderboardSize,
		Logger:          logger,
	})

	return &app{
		cfgPath: path,
		cfg:     cfg,
		logger:  logger,
		mgr:     mgr,
		store:   store,
		eng:     eng,
	}, nil
}

// requireSession restores persisted tokens.
func (a *app) requireSession() error {
	if a.mgr.Authenticated() {
		return nil
	}
	if err := a.mgr.Restore(); err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			a.logger.Debug("restoring session failed", "error", err)
		}
		return apperr.ErrUnauthorized
	}
	return nil
}

// ready restores the session and adopts the profile's calendar. A profile
// that cannot be loaded leaves the configured calendar in place.
func (a *app) ready(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if _, err := a.eng.Profile(ctx); err != nil {
		if apperr.IsUnauthorized(err) {
			return err
		}
		a.logger.Debug("profile not loaded", "error", err)
	}
	return nil
}
