package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateStreak(t *testing.T) {
	d := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return d.AddDate(0, 0, n) }

	tests := []struct {
		name     string
		instants []time.Time
		now      time.Time
		want     Streak
	}{
		{
			name: "no commits",
			now:  d,
			want: Streak{},
		},
		{
			name:     "three days ending today",
			instants: []time.Time{day(0), day(1), day(2)},
			now:      day(2),
			want:     Streak{Current: 3, Longest: 3, TotalDays: 3},
		},
		{
			name:     "three days ending yesterday",
			instants: []time.Time{day(2), day(0), day(1)},
			now:      day(3),
			want:     Streak{Current: 3, Longest: 3, TotalDays: 3},
		},
		{
			name:     "stale streak resets current",
			instants: []time.Time{day(0), day(1), day(2)},
			now:      day(5),
			want:     Streak{Current: 0, Longest: 3, TotalDays: 3},
		},
		{
			name:     "duplicates on one day",
			instants: []time.Time{day(0), day(0).Add(time.Hour), day(0).Add(2 * time.Hour)},
			now:      day(0),
			want:     Streak{Current: 1, Longest: 1, TotalDays: 1},
		},
		{
			name:     "gap splits runs",
			instants: []time.Time{day(0), day(1), day(2), day(3), day(6), day(7)},
			now:      day(7),
			want:     Streak{Current: 2, Longest: 4, TotalDays: 6},
		},
		{
			name: "month rollover",
			instants: []time.Time{
				time.Date(2025, 2, 27, 12, 0, 0, 0, time.UTC),
				time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC),
				time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			now:  time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
			want: Streak{Current: 3, Longest: 3, TotalDays: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateStreak(tt.instants, time.UTC, tt.now)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.Current, got.Longest)
			assert.LessOrEqual(t, got.TotalDays, len(tt.instants))
		})
	}
}

func TestCalculateStreak_UsesUserTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on consecutive days is early morning of the next day in Tokyo,
	// while 10:00 UTC stays on the same date. In UTC these are two days, in
	// Tokyo they span three.
	instants := []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC),
	}
	now := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, Streak{Current: 2, Longest: 2, TotalDays: 2}, CalculateStreak(instants, time.UTC, now))
	assert.Equal(t, Streak{Current: 3, Longest: 3, TotalDays: 3}, CalculateStreak(instants, tokyo, now))
}
