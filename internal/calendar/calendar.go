// Package calendar buckets instants into calendar days as observed in a
// given timezone and tracks progress through the event window.
package calendar

import (
	"fmt"
	"sync"
	"time"
)

// DayLayout is the format of a day key
const DayLayout = "2006-01-02"

var locations sync.Map // name -> *time.Location

// LoadLocation resolves an IANA zone name, caching the result. Unknown or
// empty names resolve to fallback.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	locations.Store(name, loc)
	return loc
}

// DayKey returns the YYYY-MM-DD date of t as seen in loc
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ParseDay parses a day key into midnight UTC of that civil date
func ParseDay(key string) (time.Time, error) {
	d, err := time.Parse(DayLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return d, nil
}

// AddDays shifts a day key by n calendar days
func AddDays(key string, n int) (string, error) {
	d, err := ParseDay(key)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DayLayout), nil
}

// DateRange lists every day key from start to end inclusive, both bucketed
// in loc. It returns nil when end falls on an earlier day than start.
func DateRange(start, end time.Time, loc *time.Location) []string {
	first, _ := ParseDay(DayKey(start, loc))
	last, _ := ParseDay(DayKey(end, loc))

	var days []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayLayout))
	}
	return days
}
