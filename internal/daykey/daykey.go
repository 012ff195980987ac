// ABOUTME: Calendar-day keys (yyyy-MM-dd) and the single local-calendar-day rule
// ABOUTME: All day arithmetic in the engine goes through this package

package daykey

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire and storage format of a day key.
const Layout = "2006-01-02"

// Key is a calendar date with no time-of-day component, formatted as yyyy-MM-dd.
// Keys compare chronologically with the ordinary string operators.
type Key string

// Parse validates s as a day key. A full ISO-8601 timestamp is accepted and
// truncated to the date it names literally, without timezone conversion.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(Layout) && s[len(Layout)] == 'T' {
		s = s[:len(Layout)]
	}
	if _, err := time.Parse(Layout, s); err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return Key(s), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Key {
	return Key(t.Format(Layout))
}

// FromDate builds a key from civil date components, normalizing overflow.
func FromDate(year int, month time.Month, day int) Key {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func (k Key) String() string { return string(k) }

// IsZero reports whether k is the empty key.
func (k Key) IsZero() bool { return k == "" }

// civil returns midnight UTC of k. Arithmetic is done in UTC so DST
// transitions in the viewer's zone never shift a day.
func (k Key) civil() time.Time {
	t, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the key n calendar days after k (n may be negative).
func (k Key) AddDays(n int) Key {
	return FromTime(k.civil().AddDate(0, 0, n))
}

// Weekday returns the day of the week of k.
func (k Key) Weekday() time.Weekday {
	return k.civil().Weekday()
}

// Before reports whether k is strictly earlier than o.
func (k Key) Before(o Key) bool { return k < o }

// After reports whether k is strictly later than o.
func (k Key) After(o Key) bool { return k > o }

// DaysUntil returns the number of calendar days from k to o.
func (k Key) DaysUntil(o Key) int {
	return int(o.civil().Sub(k.civil()).Hours() / 24)
}

// WeekStart returns the first day of the week containing k, where weeks
// begin on first.
func (k Key) WeekStart(first time.Weekday) Key {
	offset := (int(k.Weekday()) - int(first) + 7) % 7
	return k.AddDays(-offset)
}

// Range returns the keys from start through end inclusive. It returns nil
// when end is before start.
func Range(start, end Key) []Key {
	if end.Before(start) {
		return nil
	}
	n := start.DaysUntil(end) + 1
	keys := make([]Key, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, start.AddDays(i))
	}
	return keys
}
