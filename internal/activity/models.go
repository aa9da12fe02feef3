package activity

import (
	"math"
	"time"

	"github.com/skridlevsky/commitboard/internal/calendar"
)

// CommitRecord is an approved commit check-in posted by a participant
type CommitRecord struct {
	ID                  int64     `json:"id"`
	UserID              string    `json:"userId"`
	MessageID           string    `json:"messageId"`
	CommittedAt         time.Time `json:"committedAt"`
	IsPrivate           bool      `json:"isPrivate"`
	IsExplicitlyPrivate bool      `json:"isExplicitlyPrivate"`
	Approved            bool      `json:"approved"`
}

// ProfileRecord holds a participant's timezone, forum thread and privacy choice
type ProfileRecord struct {
	UserID    string `json:"userId"`
	Timezone  string `json:"timezone"`
	ThreadID  string `json:"threadId"`
	IsPrivate bool   `json:"isPrivate"`
}

// UserRecord is a participant's display identity
type UserRecord struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// FeedRow is a feed-eligible commit joined with its author's profile and user
type FeedRow struct {
	Commit      CommitRecord
	ThreadID    string
	DisplayName string
	AvatarURL   string
}

// UserStats is the per-user summary recomputed every aggregation
type UserStats struct {
	UserID          string `json:"userId"`
	DisplayName     string `json:"displayName"`
	AvatarURL       string `json:"avatarUrl"`
	TotalCommits    int    `json:"totalCommits"`
	TotalDaysActive int    `json:"totalDaysActive"`
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
}

// Metric selects the value a leaderboard is ranked by
type Metric string

const (
	MetricCommits Metric = "commits"
	MetricDays    Metric = "days"
	MetricStreak  Metric = "streak"
)

// AllMetrics are the leaderboards computed by default
var AllMetrics = []Metric{MetricCommits, MetricDays, MetricStreak}

// Value returns the stat the metric ranks by
func (m Metric) Value(s UserStats) int {
	switch m {
	case MetricDays:
		return s.TotalDaysActive
	case MetricStreak:
		return s.CurrentStreak
	default:
		return s.TotalCommits
	}
}

// LeaderboardEntry is one ranked row of a leaderboard
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"userId"`
	DisplayName     string `json:"displayName"`
	AvatarURL       string `json:"avatarUrl"`
	TotalCommits    int    `json:"totalCommits"`
	TotalDaysActive int    `json:"totalDaysActive"`
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
}

// Attachment is a file attached to a feed message
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// FeedItem is one enriched commit in a feed
type FeedItem struct {
	UserID        string       `json:"userId"`
	DisplayName   string       `json:"displayName"`
	AvatarURL     string       `json:"avatarUrl"`
	ThreadID      string       `json:"threadId"`
	MessageID     string       `json:"messageId"`
	RenderedHTML  string       `json:"renderedHtml"`
	Attachments   []Attachment `json:"attachments"`
	CommittedAt   time.Time    `json:"committedAt"`
	RelativeLabel string       `json:"relativeTime"`
}

// EventStats are the headline counters
type EventStats struct {
	TotalCommits  int `json:"totalCommits"`
	ActiveHackers int `json:"activeHackers"`
	MessagesSent  int `json:"messagesSent"`
	CommitsToday  int `json:"commitsToday"`
}

// StatsPayload is the full dashboard payload, cached as one unit
type StatsPayload struct {
	Event         calendar.Progress             `json:"event"`
	Stats         EventStats                    `json:"stats"`
	CommitsByDay  map[string]int                `json:"commitsByDay"`
	Leaderboards  map[Metric][]LeaderboardEntry `json:"leaderboards"`
	RecentCommits []FeedItem                    `json:"recentCommits"`
	LastUpdated   time.Time                     `json:"lastUpdated"`
}

// Pagination describes one page of the commit feed
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
	Total   int  `json:"total"`
}

// CommitPage is one page of the commit feed
type CommitPage struct {
	Commits    []FeedItem `json:"commits"`
	Pagination Pagination `json:"pagination"`
}

// Page bounds. MaxPage keeps the row offset inside an int32.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 50
	MaxPage          = math.MaxInt32 / MaxPageLimit
)

// ClampPagination forces page into [1, MaxPage] and limit into [1, MaxPageLimit]
func ClampPagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
