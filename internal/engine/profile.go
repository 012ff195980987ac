// ABOUTME: Profile loading and updates for the signed-in user
// ABOUTME: The profile's timezone and day-start hour replace the configured calendar

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

var themes = []string{model.ThemeHoney, model.ThemeMint, model.ThemeNight}

// Profile fetches the signed-in user's profile and switches the engine to
// its calendar.
func (e *Engine) Profile(ctx context.Context) (model.Profile, error) {
	p, err := e.gw.GetProfile(ctx)
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	e.applyProfile(p)
	return p, nil
}

// CachedProfile returns the last profile loaded this session.
func (e *Engine) CachedProfile() (model.Profile, bool) {
	e.calMu.RLock()
	defer e.calMu.RUnlock()
	if e.profile == nil {
		return model.Profile{}, false
	}
	return *e.profile, true
}

// UpdateProfile validates upd, sends it and applies the returned profile.
func (e *Engine) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error) {
	upd, err := normalizeProfileUpdate(upd)
	if err != nil {
		return model.Profile{}, err
	}

	p, err := e.gw.UpdateProfile(ctx, upd)
	if err != nil {
		return model.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	e.applyProfile(p)
	e.logger.Info("profile updated", "timezone", p.Timezone, "day_start_hour", p.DayStartHour)
	return p, nil
}

func normalizeProfileUpdate(upd model.ProfileUpdate) (model.ProfileUpdate, error) {
	if upd.Empty() {
		return upd, apperr.Validationf("profile", "nothing to update")
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return upd, apperr.Validationf("display_name", "must not be empty")
		}
		upd.DisplayName = &name
	}
	if upd.Timezone != nil {
		tz := strings.TrimSpace(*upd.Timezone)
		if tz == "" || tz == "Local" {
			return upd, apperr.Validationf("timezone", "must be an IANA zone name")
		}
		if _, err := daykey.LoadLocation(tz); err != nil {
			return upd, apperr.Validationf("timezone", "%v", err)
		}
		upd.Timezone = &tz
	}
	if upd.DayStartHour != nil && (*upd.DayStartHour < 0 || *upd.DayStartHour > 23) {
		return upd, apperr.Validationf("day_start_hour", "must be within 0-23, got %d", *upd.DayStartHour)
	}
	if upd.Theme != nil && !slices.Contains(themes, *upd.Theme) {
		return upd, apperr.Validationf("theme", "must be one of %s", strings.Join(themes, ", "))
	}
	return upd, nil
}

// applyProfile caches p and adopts its calendar. The configured first
// weekday is kept. A profile with a missing or unknown zone leaves the
// calendar alone.
func (e *Engine) applyProfile(p model.Profile) {
	var cal daykey.Calendar
	err := errors.New("no timezone")
	if p.Timezone != "" {
		cal, err = daykey.NewCalendar(p.Timezone, p.DayStartHour)
	}

	e.calMu.Lock()
	e.profile = &p
	if err == nil {
		cal.FirstWeekday = e.calendar.FirstWeekday
		e.calendar = cal
	}
	e.calMu.Unlock()

	if err != nil {
		e.logger.Warn("profile calendar ignored", "timezone", p.Timezone, "day_start_hour", p.DayStartHour, "error", err)
		return
	}
	e.logger.Debug("calendar set from profile", "timezone", p.Timezone, "day_start_hour", p.DayStartHour)
}
