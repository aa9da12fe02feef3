// Package activity turns commit, profile and user rows into the dashboard's
// statistics: day histogram, leaderboards, streaks and enriched feeds.
package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/skridlevsky/commitboard/internal/cache"
	"github.com/skridlevsky/commitboard/internal/calendar"
	"github.com/skridlevsky/commitboard/internal/discord"
)

// StatsCacheKey is where the stats payload is cached
const StatsCacheKey = "activity:stats"

// MessageSource resolves message bodies and platform-wide counters
type MessageSource interface {
	Message(ctx context.Context, channelID, messageID string) discord.Result[discord.Message]
	MessageCount(ctx context.Context) discord.Result[int]
}

// ContentRenderer turns raw message text into safe HTML
type ContentRenderer interface {
	Render(ctx context.Context, text string) (string, error)
}

// Config holds aggregation settings
type Config struct {
	Event           calendar.Event
	StatsTTL        time.Duration
	LeaderboardSize int
	FeedSize        int
	FeedWords       int
	Metrics         []Metric
}

// Aggregator builds the stats payload and commit feed pages
type Aggregator struct {
	rows     RowStore
	messages MessageSource
	renderer ContentRenderer
	cache    *cache.Cache
	cfg      Config
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewAggregator creates an aggregator. Zero config values fall back to the
// dashboard defaults.
func NewAggregator(rows RowStore, messages MessageSource, renderer ContentRenderer, c *cache.Cache, cfg Config, log logrus.FieldLogger) *Aggregator {
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 15 * time.Second
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = 10
	}
	if cfg.FeedWords <= 0 {
		cfg.FeedWords = 50
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = AllMetrics
	}
	if cfg.Event.Location == nil {
		cfg.Event.Location = time.UTC
	}

	return &Aggregator{
		rows:     rows,
		messages: messages,
		renderer: renderer,
		cache:    c,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// SetClock replaces time.Now
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// StatsTTL is how long a computed payload is served from cache
func (a *Aggregator) StatsTTL() time.Duration {
	return a.cfg.StatsTTL
}

// Stats returns the dashboard payload, served from cache within the TTL
func (a *Aggregator) Stats(ctx context.Context) (StatsPayload, error) {
	return cache.Cached(ctx, a.cache, StatsCacheKey, a.cfg.StatsTTL, a.ComputeStats)
}

// snapshot is one consistent set of rows fetched for an aggregation
type snapshot struct {
	commits      []CommitRecord
	profiles     map[string]ProfileRecord
	users        map[string]UserRecord
	messagesSent int
}

// fetch issues the bulk queries concurrently and waits for all of them
func (a *Aggregator) fetch(ctx context.Context) (*snapshot, error) {
	var (
		commits  []CommitRecord
		profiles []ProfileRecord
		users    []UserRecord
		sent     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		commits, err = a.rows.Commits(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = a.rows.Profiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = a.rows.Users(gctx)
		return err
	})
	g.Go(func() error {
		if a.messages != nil {
			sent = a.messages.MessageCount(gctx).OrElse(0)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load activity rows: %w", err)
	}

	snap := &snapshot{
		commits:      commits,
		profiles:     make(map[string]ProfileRecord, len(profiles)),
		users:        make(map[string]UserRecord, len(users)),
		messagesSent: sent,
	}
	for _, p := range profiles {
		snap.profiles[p.UserID] = p
	}
	for _, u := range users {
		snap.users[u.UserID] = u
	}
	return snap, nil
}

// location is the timezone a user's commits are bucketed in
func (a *Aggregator) location(s *snapshot, userID string) *time.Location {
	p, ok := s.profiles[userID]
	if !ok {
		return a.cfg.Event.Location
	}
	return calendar.LoadLocation(p.Timezone, a.cfg.Event.Location)
}

// leaderboardEligible reports whether the user has a public profile
func (s *snapshot) leaderboardEligible(userID string) bool {
	p, ok := s.profiles[userID]
	return ok && !p.IsPrivate
}

// feedEligible additionally excludes commits marked private
func (s *snapshot) feedEligible(c CommitRecord) bool {
	return c.Approved && s.leaderboardEligible(c.UserID) && !c.IsPrivate && !c.IsExplicitlyPrivate
}

// ComputeStats builds the payload from fresh rows, bypassing the cache
func (a *Aggregator) ComputeStats(ctx context.Context) (StatsPayload, error) {
	snap, err := a.fetch(ctx)
	if err != nil {
		return StatsPayload{}, err
	}
	now := a.now()

	recent, err := a.recentFeed(ctx, snap, now)
	if err != nil {
		return StatsPayload{}, err
	}

	stats := a.userStats(snap, now)
	leaderboards := make(map[Metric][]LeaderboardEntry, len(a.cfg.Metrics))
	for _, m := range a.cfg.Metrics {
		leaderboards[m] = BuildLeaderboard(stats, m, a.cfg.LeaderboardSize)
	}

	return StatsPayload{
		Event:         a.cfg.Event.Progress(now),
		Stats:         a.eventStats(snap, now),
		CommitsByDay:  a.commitsByDay(snap),
		Leaderboards:  leaderboards,
		RecentCommits: recent,
		LastUpdated:   now.UTC(),
	}, nil
}

// commitsByDay counts every commit per day over the event window. Days
// without commits are present with zero.
func (a *Aggregator) commitsByDay(s *snapshot) map[string]int {
	days := a.cfg.Event.Days()
	counts := make(map[string]int, len(days))
	for _, d := range days {
		counts[d] = 0
	}
	for _, c := range s.commits {
		key := calendar.DayKey(c.CommittedAt, a.location(s, c.UserID))
		if _, ok := counts[key]; ok {
			counts[key]++
		}
	}
	return counts
}

func (a *Aggregator) eventStats(s *snapshot, now time.Time) EventStats {
	loc := a.cfg.Event.Location
	today := calendar.DayKey(now, loc)

	hackers := make(map[string]struct{})
	var commitsToday int
	for _, c := range s.commits {
		hackers[c.UserID] = struct{}{}
		if calendar.DayKey(c.CommittedAt, loc) == today {
			commitsToday++
		}
	}

	return EventStats{
		TotalCommits:  len(s.commits),
		ActiveHackers: len(hackers),
		MessagesSent:  s.messagesSent,
		CommitsToday:  commitsToday,
	}
}

// userStats groups leaderboard-eligible commits by user, in order of each
// user's first commit.
func (a *Aggregator) userStats(s *snapshot, now time.Time) []UserStats {
	var order []string
	byUser := make(map[string][]time.Time)
	for _, c := range s.commits {
		if !s.leaderboardEligible(c.UserID) {
			continue
		}
		if _, ok := byUser[c.UserID]; !ok {
			order = append(order, c.UserID)
		}
		byUser[c.UserID] = append(byUser[c.UserID], c.CommittedAt)
	}

	stats := make([]UserStats, 0, len(order))
	for _, id := range order {
		instants := byUser[id]
		streak := CalculateStreak(instants, a.location(s, id), now)
		name, avatar := s.identity(id)
		stats = append(stats, UserStats{
			UserID:          id,
			DisplayName:     name,
			AvatarURL:       avatar,
			TotalCommits:    len(instants),
			TotalDaysActive: streak.TotalDays,
			CurrentStreak:   streak.Current,
			LongestStreak:   streak.Longest,
		})
	}
	return stats
}

// identity returns the display name and avatar for a user
func (s *snapshot) identity(userID string) (string, string) {
	u, ok := s.users[userID]
	if !ok {
		return userID, discord.DefaultAvatarURL(userID)
	}
	avatar := u.AvatarURL
	if avatar == "" {
		avatar = discord.DefaultAvatarURL(userID)
	}
	return u.DisplayName, avatar
}

// BuildLeaderboard ranks users by metric, highest first, keeping the input
// order among ties. Rank is the 1-based position.
func BuildLeaderboard(stats []UserStats, metric Metric, size int) []LeaderboardEntry {
	sorted := make([]UserStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return metric.Value(sorted[i]) > metric.Value(sorted[j])
	})
	if size > 0 && len(sorted) > size {
		sorted = sorted[:size]
	}

	entries := make([]LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:            i + 1,
			UserID:          s.UserID,
			DisplayName:     s.DisplayName,
			AvatarURL:       s.AvatarURL,
			TotalCommits:    s.TotalCommits,
			TotalDaysActive: s.TotalDaysActive,
			CurrentStreak:   s.CurrentStreak,
			LongestStreak:   s.LongestStreak,
		}
	}
	return entries
}

// recentFeed enriches the newest feed-eligible commits
func (a *Aggregator) recentFeed(ctx context.Context, s *snapshot, now time.Time) ([]FeedItem, error) {
	var rows []FeedRow
	for i := len(s.commits) - 1; i >= 0; i-- {
		c := s.commits[i]
		if !s.feedEligible(c) {
			continue
		}
		p := s.profiles[c.UserID]
		name, avatar := s.identity(c.UserID)
		rows = append(rows, FeedRow{
			Commit:      c,
			ThreadID:    p.ThreadID,
			DisplayName: name,
			AvatarURL:   avatar,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Commit.CommittedAt.After(rows[j].Commit.CommittedAt)
	})
	if len(rows) > a.cfg.FeedSize {
		rows = rows[:a.cfg.FeedSize]
	}
	return a.enrich(ctx, rows, now)
}

// CommitPage returns one page of the feed, served from cache within the TTL
func (a *Aggregator) CommitPage(ctx context.Context, page, limit int) (CommitPage, error) {
	page, limit = ClampPagination(page, limit)
	key := fmt.Sprintf("activity:commits:%d:%d", page, limit)
	return cache.Cached(ctx, a.cache, key, a.cfg.StatsTTL, func(ctx context.Context) (CommitPage, error) {
		return a.computeCommitPage(ctx, page, limit)
	})
}

// computeCommitPage over-fetches one row to learn whether another page exists
func (a *Aggregator) computeCommitPage(ctx context.Context, page, limit int) (CommitPage, error) {
	var (
		rows  []FeedRow
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = a.rows.FeedCommits(gctx, limit+1, (page-1)*limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.rows.CountFeedCommits(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return CommitPage{}, fmt.Errorf("failed to load commit page: %w", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		if rows[i].DisplayName == "" {
			rows[i].DisplayName = rows[i].Commit.UserID
		}
		if rows[i].AvatarURL == "" {
			rows[i].AvatarURL = discord.DefaultAvatarURL(rows[i].Commit.UserID)
		}
	}

	items, err := a.enrich(ctx, rows, a.now())
	if err != nil {
		return CommitPage{}, err
	}

	return CommitPage{
		Commits: items,
		Pagination: Pagination{
			Page:    page,
			Limit:   limit,
			HasMore: hasMore,
			Total:   total,
		},
	}, nil
}
