// Package config handles configuration loading for habithive.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid by an optional
// YAML file with environment variable expansion, and finally by HABITHIVE_*
// environment overrides.
//
// # Configuration File
//
// Default location (first match wins):
//
//  1. Path from HABITHIVE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/habithive/config.yaml
//  3. ~/.config/habithive/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  base_url: "${HABITHIVE_API}"
//
// Syntax: ${VAR_NAME}
//
// # Environment Overrides
//
// Individual fields can be overridden without a file:
//
//	HABITHIVE_GATEWAY_BASE_URL=https://api.example.com/api
//	HABITHIVE_GATEWAY_TIMEOUT=5s
//	HABITHIVE_CALENDAR_TIMEZONE=Europe/Berlin
//	HABITHIVE_LOGGING_LEVEL=debug
//
// # Configuration Sections
//
//	gateway:
//	  base_url: "http://localhost:8002/api"
//	  timeout: "15s"
//
//	session:
//	  refresh_margin: "60s"
//	  keyring:
//	    enabled: true
//	    service: "habithive"
//
//	calendar:
//	  timezone: "America/Los_Angeles"   # IANA name, or Local
//	  day_start_hour: 0                 # 0-23
//	  first_weekday: "sunday"           # sunday, monday
//
//	sync:
//	  history_days: 60
//
//	views:
//	  heatmap_weeks: 5
//	  leaderboard_size: 5
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cal, err := cfg.NewCalendar()
package config
