// ABOUTME: Viewer calendar that maps instants to local day keys
// ABOUTME: Applies the viewer's timezone and day-start hour consistently everywhere

package daykey

import (
	"fmt"
	"time"
)

// Calendar maps instants to day keys for one viewer. A day that starts at
// DayStartHour means 01:30 with DayStartHour=3 still belongs to yesterday.
type Calendar struct {
	Location     *time.Location
	DayStartHour int
	// FirstWeekday is the column heatmap grids start on. The zero value is Sunday.
	FirstWeekday time.Weekday
}

// LoadLocation resolves an IANA zone name. Empty or "Local" means the
// system local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// NewCalendar builds a calendar for the named zone.
func NewCalendar(timezone string, dayStartHour int) (Calendar, error) {
	if dayStartHour < 0 || dayStartHour > 23 {
		return Calendar{}, fmt.Errorf("day start hour %d out of range 0-23", dayStartHour)
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{Location: loc, DayStartHour: dayStartHour}, nil
}

// DayOf returns the viewer's calendar day containing instant t.
func (c Calendar) DayOf(t time.Time) Key {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc).Add(-time.Duration(c.DayStartHour) * time.Hour)
	return FromTime(local)
}

// Today is DayOf(now).
func (c Calendar) Today(now time.Time) Key {
	return c.DayOf(now)
}
