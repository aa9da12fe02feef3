package activity

import (
	"sort"
	"time"

	"github.com/skridlevsky/commitboard/internal/calendar"
)

// Streak summarises a user's run of active days
type Streak struct {
	Current   int `json:"currentStreak"`
	Longest   int `json:"longestStreak"`
	TotalDays int `json:"totalDays"`
}

// CalculateStreak buckets instants into days in loc and measures consecutive
// runs. The current streak only counts if its last day is today or
// yesterday in loc, evaluated at now.
func CalculateStreak(instants []time.Time, loc *time.Location, now time.Time) Streak {
	if len(instants) == 0 {
		return Streak{}
	}

	seen := make(map[string]struct{}, len(instants))
	days := make([]time.Time, 0, len(instants))
	for _, t := range instants {
		key := calendar.DayKey(t, loc)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		day, err := calendar.ParseDay(key)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today, _ := calendar.ParseDay(calendar.DayKey(now, loc))
	last := days[len(days)-1]
	current := run
	if !last.Equal(today) && !last.AddDate(0, 0, 1).Equal(today) {
		current = 0
	}

	return Streak{
		Current:   current,
		Longest:   longest,
		TotalDays: len(days),
	}
}
