// ABOUTME: Local validation and defaults for habit creation requests
// ABOUTME: Rejects bad input before any network call

package engine

import (
	"strings"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/model"
)

// Habit creation defaults.
const (
	DefaultEmoji    = "🐝"
	DefaultColorHex = "#FF9F1C"
	// EveryDayMask schedules a habit on all seven days.
	EveryDayMask = 127
)

// NormalizeHabitRequest trims and defaults req and validates the result.
func NormalizeHabitRequest(req model.CreateHabitRequest) (model.CreateHabitRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, apperr.Validationf("name", "must not be empty")
	}

	if req.Emoji = strings.TrimSpace(req.Emoji); req.Emoji == "" {
		req.Emoji = DefaultEmoji
	}

	if req.Type == "" {
		req.Type = model.HabitTypeCheckbox
	}
	if !req.Type.Valid() {
		return req, apperr.Validationf("type", "unknown habit type %q", req.Type)
	}

	switch {
	case req.TargetPerDay < 0:
		return req, apperr.Validationf("target_per_day", "must be > 0, got %d", req.TargetPerDay)
	case req.TargetPerDay == 0 || req.Type == model.HabitTypeCheckbox:
		req.TargetPerDay = 1
	}

	color, err := normalizeColor(req.ColorHex)
	if err != nil {
		return req, err
	}
	req.ColorHex = color

	if req.ScheduleMask < 0 || req.ScheduleMask > EveryDayMask {
		return req, apperr.Validationf("schedule_weekmask", "must be within 0-%d, got %d", EveryDayMask, req.ScheduleMask)
	}
	if req.ScheduleMask == 0 {
		req.ScheduleDaily = true
		req.ScheduleMask = EveryDayMask
	}
	return req, nil
}

// normalizeColor accepts "RRGGBB" or "#RRGGBB" and returns the upper-cased
// "#RRGGBB" form.
func normalizeColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultColorHex, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 7 {
		return "", apperr.Validationf("color_hex", "must be #RRGGBB, got %q", s)
	}
	for _, c := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", apperr.Validationf("color_hex", "must be #RRGGBB, got %q", s)
		}
	}
	return strings.ToUpper(s), nil
}
