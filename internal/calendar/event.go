package calendar

import (
	"fmt"
	"time"
)

// Event is the fixed window the dashboard reports on
type Event struct {
	Start     time.Time
	TotalDays int
	Location  *time.Location
}

// Progress is the position of "now" inside the event window
type Progress struct {
	CurrentDay    int `json:"currentDay"`
	TotalDays     int `json:"totalDays"`
	DaysRemaining int `json:"daysRemaining"`
}

// Progress reports the 1-based current day, clamped to [1, TotalDays]
func (e Event) Progress(now time.Time) Progress {
	elapsed := now.Sub(e.Start)
	current := int(elapsed/(24*time.Hour)) + 1
	if current < 1 {
		current = 1
	}
	if current > e.TotalDays {
		current = e.TotalDays
	}

	remaining := e.TotalDays - current
	if remaining < 0 {
		remaining = 0
	}

	return Progress{
		CurrentDay:    current,
		TotalDays:     e.TotalDays,
		DaysRemaining: remaining,
	}
}

// Days lists the TotalDays day keys of the event window, starting with the
// day the event starts on in the event timezone.
func (e Event) Days() []string {
	if e.TotalDays <= 0 {
		return nil
	}
	first, _ := ParseDay(DayKey(e.Start, e.Location))
	days := make([]string, e.TotalDays)
	for i := range days {
		days[i] = first.AddDate(0, 0, i).Format(DayLayout)
	}
	return days
}

// RelativeTime renders a coarse "time ago" label for t as seen from now
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
