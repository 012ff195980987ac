// ABOUTME: Configuration loading and parsing for habithive
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and env overrides

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/venkateshthallam/habithive/internal/daykey"
)

// EnvPrefix prefixes every environment override, e.g. HABITHIVE_GATEWAY_BASE_URL.
const EnvPrefix = "HABITHIVE_"

// Defaults applied before the file is read.
const (
	DefaultBaseURL         = "http://localhost:8002/api"
	DefaultTimeout         = 15 * time.Second
	DefaultRefreshMargin   = 60 * time.Second
	DefaultKeyringService  = "habithive"
	DefaultHistoryDays     = 60
	DefaultHeatmapWeeks    = 5
	DefaultLeaderboardSize = 5
)

// Config represents the complete habithive configuration
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Session  SessionConfig  `yaml:"session"`
	Calendar CalendarConfig `yaml:"calendar"`
	Sync     SyncConfig     `yaml:"sync"`
	Views    ViewsConfig    `yaml:"views"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig holds the API server location
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" env:"GATEWAY_BASE_URL"`
	Timeout time.Duration `yaml:"-" env:"GATEWAY_TIMEOUT"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// SessionConfig holds token refresh and persistence settings
type SessionConfig struct {
	RefreshMargin    time.Duration `yaml:"-" env:"SESSION_REFRESH_MARGIN"`
	RefreshMarginRaw string        `yaml:"refresh_margin"`
	Keyring          KeyringConfig `yaml:"keyring"`
}

// KeyringConfig controls storing tokens in the OS keyring
type KeyringConfig struct {
	Enabled bool   `yaml:"enabled" env:"KEYRING_ENABLED"`
	Service string `yaml:"service" env:"KEYRING_SERVICE"`
}

// CalendarConfig defines the viewer's day boundaries
type CalendarConfig struct {
	Timezone     string `yaml:"timezone" env:"CALENDAR_TIMEZONE"`
	DayStartHour int    `yaml:"day_start_hour" env:"CALENDAR_DAY_START_HOUR"`
	FirstWeekday string `yaml:"first_weekday" env:"CALENDAR_FIRST_WEEKDAY"` // sunday or monday
}

// SyncConfig holds reload settings
type SyncConfig struct {
	HistoryDays int `yaml:"history_days" env:"SYNC_HISTORY_DAYS"`
}

// ViewsConfig holds derived view sizes
type ViewsConfig struct {
	HeatmapWeeks    int `yaml:"heatmap_weeks" env:"VIEWS_HEATMAP_WEEKS"`
	LeaderboardSize int `yaml:"leaderboard_size" env:"VIEWS_LEADERBOARD_SIZE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOGGING_LEVEL"`
	Format string `yaml:"format" env:"LOGGING_FORMAT"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout},
		Session: SessionConfig{
			RefreshMargin: DefaultRefreshMargin,
			Keyring:       KeyringConfig{Enabled: true, Service: DefaultKeyringService},
		},
		Calendar: CalendarConfig{Timezone: "Local", FirstWeekday: "sunday"},
		Sync:     SyncConfig{HistoryDays: DefaultHistoryDays},
		Views:    ViewsConfig{HeatmapWeeks: DefaultHeatmapWeeks, LeaderboardSize: DefaultLeaderboardSize},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath resolves the config file location: $HABITHIVE_CONFIG, then
// $XDG_CONFIG_HOME/habithive/config.yaml, then ~/.config/habithive/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("HABITHIVE_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "habithive", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "habithive", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, then
// HABITHIVE_* variables override individual fields. An empty path skips
// the file. A missing file returns an error wrapping fs.ErrNotExist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the raw YAML content
		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		if err := parseDurations(cfg); err != nil {
			return nil, fmt.Errorf("parsing durations: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gateway.base_url %q must be an http or https URL", c.Gateway.BaseURL)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive, got %s", c.Gateway.Timeout)
	}

	if c.Session.RefreshMargin < 0 {
		return fmt.Errorf("session.refresh_margin must not be negative, got %s", c.Session.RefreshMargin)
	}
	if c.Session.Keyring.Enabled && c.Session.Keyring.Service == "" {
		return errors.New("session.keyring.service is required when the keyring is enabled")
	}

	if _, err := c.NewCalendar(); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}

	if c.Sync.HistoryDays < 1 || c.Sync.HistoryDays > 365 {
		return fmt.Errorf("sync.history_days must be within 1-365, got %d", c.Sync.HistoryDays)
	}
	if c.Views.HeatmapWeeks < 1 || c.Views.HeatmapWeeks > 53 {
		return fmt.Errorf("views.heatmap_weeks must be within 1-53, got %d", c.Views.HeatmapWeeks)
	}
	if c.Views.LeaderboardSize < 1 {
		return fmt.Errorf("views.leaderboard_size must be positive, got %d", c.Views.LeaderboardSize)
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format %q must be one of %s", c.Logging.Format, strings.Join(logFormats, ", "))
	}

	return nil
}

// NewCalendar builds the viewer calendar from the calendar section.
func (c *Config) NewCalendar() (daykey.Calendar, error) {
	cal, err := daykey.NewCalendar(c.Calendar.Timezone, c.Calendar.DayStartHour)
	if err != nil {
		return daykey.Calendar{}, err
	}
	switch strings.ToLower(c.Calendar.FirstWeekday) {
	case "", "sunday":
		cal.FirstWeekday = time.Sunday
	case "monday":
		cal.FirstWeekday = time.Monday
	default:
		return daykey.Calendar{}, fmt.Errorf("first_weekday %q must be sunday or monday", c.Calendar.FirstWeekday)
	}
	return cal, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Gateway.TimeoutRaw != "" {
		cfg.Gateway.Timeout, err = time.ParseDuration(cfg.Gateway.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Gateway.TimeoutRaw, err)
		}
	}

	if cfg.Session.RefreshMarginRaw != "" {
		cfg.Session.RefreshMargin, err = time.ParseDuration(cfg.Session.RefreshMarginRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_margin %q: %w", cfg.Session.RefreshMarginRaw, err)
		}
	}

	return nil
}
