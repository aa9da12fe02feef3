package activity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skridlevsky/commitboard/internal/cache"
	"github.com/skridlevsky/commitboard/internal/calendar"
	"github.com/skridlevsky/commitboard/internal/discord"
	"github.com/skridlevsky/commitboard/internal/render"
)

type fakeRowStore struct {
	commits  []CommitRecord
	profiles []ProfileRecord
	users    []UserRecord
	feed     []FeedRow
	err      error
	calls    int32

	lastOffset int
}

func (f *fakeRowStore) Commits(context.Context) ([]CommitRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.commits, nil
}

func (f *fakeRowStore) Profiles(context.Context) ([]ProfileRecord, error) {
	return f.profiles, nil
}

func (f *fakeRowStore) Users(context.Context) ([]UserRecord, error) {
	return f.users, nil
}

func (f *fakeRowStore) FeedCommits(_ context.Context, limit, offset int) ([]FeedRow, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastOffset = offset
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.feed) {
		return []FeedRow{}, nil
	}
	end := offset + limit
	if end > len(f.feed) {
		end = len(f.feed)
	}
	return f.feed[offset:end], nil
}

func (f *fakeRowStore) CountFeedCommits(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.feed), nil
}

type fakeMessages struct {
	messages map[string]discord.Message
	count    int
}

func (f *fakeMessages) Message(_ context.Context, _ string, messageID string) discord.Result[discord.Message] {
	if msg, ok := f.messages[messageID]; ok {
		return discord.Found(msg)
	}
	return discord.Unavailable[discord.Message]()
}

func (f *fakeMessages) MessageCount(context.Context) discord.Result[int] {
	if f.count < 0 {
		return discord.Unavailable[int]()
	}
	return discord.Found(f.count)
}

var (
	eventStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	testNow    = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
)

func at(day, hour int) time.Time {
	return eventStart.AddDate(0, 0, day-1).Add(time.Duration(hour) * time.Hour)
}

func commit(id int64, user string, t time.Time) CommitRecord {
	return CommitRecord{
		ID:          id,
		UserID:      user,
		MessageID:   fmt.Sprintf("m%d", id),
		CommittedAt: t,
		Approved:    true,
	}
}

// fixtureRows: ada (UTC) commits daily, grace (Tokyo) has private commits,
// priv has a private profile and nobody has no profile at all.
func fixtureRows() *fakeRowStore {
	graceExplicit := commit(10, "grace", at(5, 10))
	graceExplicit.IsExplicitlyPrivate = true
	gracePrivate := commit(11, "grace", at(5, 11))
	gracePrivate.IsPrivate = true

	commits := []CommitRecord{
		commit(1, "ada", at(1, 10)),
		commit(2, "priv", at(1, 11)),
		commit(3, "priv", at(1, 12)),
		commit(4, "grace", at(1, 20)),
		commit(5, "grace", at(1, 21)),
		commit(6, "ada", at(2, 10)),
		commit(7, "priv", at(2, 11)),
		commit(8, "priv", at(2, 12)),
		commit(9, "ada", at(3, 10)),
		commit(12, "priv", at(3, 11)),
		commit(13, "priv", at(3, 12)),
		commit(14, "ada", at(4, 10)),
		commit(15, "nobody", at(4, 11)),
		commit(16, "ada", at(5, 9)),
		graceExplicit,
		gracePrivate,
	}

	return &fakeRowStore{
		commits: commits,
		profiles: []ProfileRecord{
			{UserID: "ada", Timezone: "UTC", ThreadID: "t-ada"},
			{UserID: "grace", Timezone: "Asia/Tokyo", ThreadID: "t-grace"},
			{UserID: "priv", Timezone: "UTC", ThreadID: "t-priv", IsPrivate: true},
		},
		users: []UserRecord{
			{UserID: "ada", DisplayName: "Ada", AvatarURL: "https://cdn.example/ada.png"},
			{UserID: "grace", DisplayName: "Grace"},
			{UserID: "priv", DisplayName: "Private Person"},
		},
	}
}

func setupAggregator(t *testing.T, rows RowStore, messages MessageSource, cfg Config) *Aggregator {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg.Event = calendar.Event{Start: eventStart, TotalDays: 20, Location: time.UTC}
	c := cache.New(cache.NewMemoryStore(), logger)
	agg := NewAggregator(rows, messages, render.NewRenderer(nil, render.WithLogger(logger)), c, cfg, logger)
	agg.SetClock(func() time.Time { return testNow })
	return agg
}

func TestStats_CountersAndHistogram(t *testing.T) {
	rows := fixtureRows()
	agg := setupAggregator(t, rows, &fakeMessages{count: 321}, Config{})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, calendar.Progress{CurrentDay: 5, TotalDays: 20, DaysRemaining: 15}, payload.Event)
	assert.Equal(t, EventStats{
		TotalCommits:  16,
		ActiveHackers: 4,
		MessagesSent:  321,
		CommitsToday:  3,
	}, payload.Stats)

	assert.Len(t, payload.CommitsByDay, 20)
	sum := 0
	for _, d := range agg.cfg.Event.Days() {
		count, ok := payload.CommitsByDay[d]
		require.True(t, ok, d)
		sum += count
	}
	assert.Equal(t, payload.Stats.TotalCommits, sum)
	assert.Equal(t, 0, payload.CommitsByDay["2025-03-20"])
	// grace's evening UTC commits land on the 2nd in Tokyo
	assert.Equal(t, 3+2, payload.CommitsByDay["2025-03-02"])
	assert.Equal(t, testNow.UTC(), payload.LastUpdated)
}

func TestStats_Leaderboards(t *testing.T) {
	agg := setupAggregator(t, fixtureRows(), &fakeMessages{}, Config{})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Leaderboards, 3)

	for metric, board := range payload.Leaderboards {
		for i, entry := range board {
			assert.Equal(t, i+1, entry.Rank)
			assert.NotEqual(t, "priv", entry.UserID, "private profile on %s board", metric)
			assert.NotEqual(t, "nobody", entry.UserID, "missing profile on %s board", metric)
			if i > 0 {
				prev := board[i-1]
				assert.GreaterOrEqual(t,
					metric.Value(UserStats{TotalCommits: prev.TotalCommits, TotalDaysActive: prev.TotalDaysActive, CurrentStreak: prev.CurrentStreak}),
					metric.Value(UserStats{TotalCommits: entry.TotalCommits, TotalDaysActive: entry.TotalDaysActive, CurrentStreak: entry.CurrentStreak}),
				)
			}
		}
	}

	commits := payload.Leaderboards[MetricCommits]
	require.Len(t, commits, 2)
	assert.Equal(t, "ada", commits[0].UserID)
	assert.Equal(t, 5, commits[0].TotalCommits)
	assert.Equal(t, 5, commits[0].TotalDaysActive)
	assert.Equal(t, 5, commits[0].CurrentStreak)
	assert.Equal(t, "https://cdn.example/ada.png", commits[0].AvatarURL)

	grace := commits[1]
	assert.Equal(t, "grace", grace.UserID)
	assert.Equal(t, 4, grace.TotalCommits)
	assert.Equal(t, 2, grace.TotalDaysActive)
	assert.Equal(t, 1, grace.CurrentStreak)
	assert.Equal(t, discord.DefaultAvatarURL("grace"), grace.AvatarURL)
}

func TestStats_SelectedMetricsOnly(t *testing.T) {
	agg := setupAggregator(t, fixtureRows(), &fakeMessages{}, Config{Metrics: []Metric{MetricStreak}})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Leaderboards, 1)
	assert.Contains(t, payload.Leaderboards, MetricStreak)
}

func TestStats_RecentFeedPrivacyAndOrder(t *testing.T) {
	messages := &fakeMessages{messages: map[string]discord.Message{
		"m16": {ID: "m16", Content: "shipped the **parser**", Attachments: []discord.Attachment{
			{URL: "https://cdn.example/demo.png", Filename: "demo.png"},
			{URL: "https://cdn.example/notes", Filename: "notes", ContentType: "text/plain"},
			{URL: "https://cdn.example/blob", Filename: "blob"},
		}},
		"m5": {
			ID:               "m5",
			MessageReference: &discord.MessageReference{Type: discord.MessageReferenceForward},
			MessageSnapshots: []discord.MessageSnapshot{{Message: discord.SnapshotMessage{Content: "forwarded update"}}},
		},
	}}
	agg := setupAggregator(t, fixtureRows(), messages, Config{FeedSize: 5})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.RecentCommits, 5)

	ids := make([]string, len(payload.RecentCommits))
	for i, item := range payload.RecentCommits {
		ids[i] = item.MessageID
		if i > 0 {
			assert.False(t, item.CommittedAt.After(payload.RecentCommits[i-1].CommittedAt))
		}
	}
	assert.Equal(t, []string{"m16", "m14", "m9", "m6", "m5"}, ids)

	latest := payload.RecentCommits[0]
	assert.Equal(t, "Ada", latest.DisplayName)
	assert.Equal(t, "t-ada", latest.ThreadID)
	assert.Contains(t, latest.RenderedHTML, "<strong>parser</strong>")
	assert.Equal(t, "3h ago", latest.RelativeLabel)
	assert.Equal(t, []Attachment{
		{URL: "https://cdn.example/demo.png", MimeType: "image/png", Filename: "demo.png"},
		{URL: "https://cdn.example/notes", MimeType: "text/plain", Filename: "notes"},
		{URL: "https://cdn.example/blob", MimeType: "application/octet-stream", Filename: "blob"},
	}, latest.Attachments)

	assert.Empty(t, payload.RecentCommits[1].RenderedHTML)
	assert.Contains(t, payload.RecentCommits[4].RenderedHTML, "forwarded update")
}

func TestStats_CachedWithinTTL(t *testing.T) {
	rows := fixtureRows()
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})
	ctx := context.Background()

	first, err := agg.Stats(ctx)
	require.NoError(t, err)
	second, err := agg.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&rows.calls))
	assert.Equal(t, first.Stats, second.Stats)
}

func TestStats_StoreErrorPropagatesAndIsNotCached(t *testing.T) {
	rows := fixtureRows()
	rows.err = errors.New("connection reset")
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})
	ctx := context.Background()

	_, err := agg.Stats(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, rows.err)

	rows.err = nil
	payload, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, payload.Stats.TotalCommits)
}

func TestStats_MessageCountUnavailableIsZero(t *testing.T) {
	agg := setupAggregator(t, fixtureRows(), &fakeMessages{count: -1}, Config{})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, payload.Stats.MessagesSent)
}

func TestStats_Empty(t *testing.T) {
	agg := setupAggregator(t, &fakeRowStore{}, nil, Config{})

	payload, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventStats{}, payload.Stats)
	assert.Len(t, payload.CommitsByDay, 20)
	assert.Empty(t, payload.RecentCommits)
	assert.Empty(t, payload.Leaderboards[MetricCommits])
}

func feedFixture(n int) *fakeRowStore {
	rows := make([]FeedRow, n)
	for i := range rows {
		rows[i] = FeedRow{
			Commit:      commit(int64(n-i), "ada", testNow.Add(-time.Duration(i)*time.Hour)),
			ThreadID:    "t-ada",
			DisplayName: "Ada",
		}
	}
	return &fakeRowStore{feed: rows}
}

func TestCommitPage_Pagination(t *testing.T) {
	agg := setupAggregator(t, feedFixture(25), &fakeMessages{}, Config{})
	ctx := context.Background()

	page2, err := agg.CommitPage(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2.Commits, 10)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, HasMore: true, Total: 25}, page2.Pagination)
	assert.Equal(t, "m15", page2.Commits[0].MessageID)

	page3, err := agg.CommitPage(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page3.Commits, 5)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, HasMore: false, Total: 25}, page3.Pagination)

	page4, err := agg.CommitPage(ctx, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, page4.Commits)
	assert.False(t, page4.Pagination.HasMore)
}

func TestCommitPage_ClampsParameters(t *testing.T) {
	agg := setupAggregator(t, feedFixture(60), &fakeMessages{}, Config{})
	ctx := context.Background()

	big, err := agg.CommitPage(ctx, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, big.Pagination.Page)
	assert.Equal(t, MaxPageLimit, big.Pagination.Limit)
	assert.Len(t, big.Commits, MaxPageLimit)
	assert.True(t, big.Pagination.HasMore)

	small, err := agg.CommitPage(ctx, -3, -1)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 1, HasMore: true, Total: 60}, small.Pagination)
}

func TestCommitPage_HugePageClampsOffset(t *testing.T) {
	rows := feedFixture(3)
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})

	page, err := agg.CommitPage(context.Background(), 999999999999999999, 50)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rows.lastOffset, 0)
	assert.Equal(t, (MaxPage-1)*MaxPageLimit, rows.lastOffset)
	assert.Empty(t, page.Commits)
	assert.Equal(t, Pagination{Page: MaxPage, Limit: 50, HasMore: false, Total: 3}, page.Pagination)
}

func TestClampPagination(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{1, 10, 1, 10},
		{0, 0, 1, 1},
		{-5, 500, 1, MaxPageLimit},
		{MaxPage + 1, 10, MaxPage, 10},
		{math.MaxInt, 1, MaxPage, 1},
	}
	for _, tt := range tests {
		page, limit := ClampPagination(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestCommitPage_LogsUnavailableMessage(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	c := cache.New(cache.NewMemoryStore(), logger)
	agg := NewAggregator(feedFixture(1), &fakeMessages{}, render.NewRenderer(nil, render.WithLogger(logger)), c,
		Config{Event: calendar.Event{Start: eventStart, TotalDays: 20, Location: time.UTC}}, logger)
	agg.SetClock(func() time.Time { return testNow })

	page, err := agg.CommitPage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Commits, 1)
	assert.Empty(t, page.Commits[0].RenderedHTML)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "m1", entry.Data["message_id"])
}

func TestCommitPage_FillsMissingIdentity(t *testing.T) {
	rows := &fakeRowStore{feed: []FeedRow{{Commit: commit(1, "ghost", testNow), ThreadID: "t"}}}
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})

	page, err := agg.CommitPage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Commits, 1)
	assert.Equal(t, "ghost", page.Commits[0].DisplayName)
	assert.Equal(t, discord.DefaultAvatarURL("ghost"), page.Commits[0].AvatarURL)
}

func TestCommitPage_StoreError(t *testing.T) {
	rows := feedFixture(5)
	rows.err = errors.New("relation does not exist")
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})

	_, err := agg.CommitPage(context.Background(), 1, 10)
	assert.ErrorIs(t, err, rows.err)
}

func TestBuildLeaderboard_StableTies(t *testing.T) {
	stats := []UserStats{
		{UserID: "a", TotalCommits: 3},
		{UserID: "b", TotalCommits: 5},
		{UserID: "c", TotalCommits: 3},
		{UserID: "d", TotalCommits: 1},
	}

	board := BuildLeaderboard(stats, MetricCommits, 3)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{board[0].UserID, board[1].UserID, board[2].UserID})
	assert.Equal(t, []int{1, 2, 3}, []int{board[0].Rank, board[1].Rank, board[2].Rank})
	assert.Equal(t, "a", stats[0].UserID)
}

func TestWarmer_PopulatesCache(t *testing.T) {
	rows := fixtureRows()
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w := NewWarmer(agg, agg.cache, time.Hour, logger)
	w.warm(context.Background())
	assert.Equal(t, "ok", w.Status().Status)

	_, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rows.calls))

	w.Stop()
	w.Stop()
}

func TestWarmer_StatusHidesErrorDetail(t *testing.T) {
	rows := fixtureRows()
	rows.err = errors.New("dial tcp 10.0.0.5:5432: connection refused")
	agg := setupAggregator(t, rows, &fakeMessages{}, Config{})
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w := NewWarmer(agg, agg.cache, time.Hour, logger)
	w.warm(context.Background())
	assert.Equal(t, "error", w.Status().Status)
	assert.False(t, w.Status().LastRun.IsZero())
}
