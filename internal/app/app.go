// Package app wires the dashboard's components from configuration. Both
// binaries build on it.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/activity"
	"github.com/skridlevsky/commitboard/internal/cache"
	"github.com/skridlevsky/commitboard/internal/calendar"
	"github.com/skridlevsky/commitboard/internal/config"
	"github.com/skridlevsky/commitboard/internal/db"
	"github.com/skridlevsky/commitboard/internal/discord"
	"github.com/skridlevsky/commitboard/internal/render"
)

// janitorInterval is how often expired cache entries are purged
const janitorInterval = 5 * time.Minute

// App holds the wired components
type App struct {
	Database   *db.Postgres
	Cache      *cache.Cache
	Janitor    *cache.Janitor
	Resolver   *discord.Resolver
	Renderer   *render.Renderer
	Aggregator *activity.Aggregator
	Event      calendar.Event
}

// New connects to the database, runs migrations and builds every component.
// The caller owns Close.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	database, err := db.NewPostgres(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(ctx, database.Pool(), log); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var store interface {
		cache.Store
		cache.Expirer
	}
	switch cfg.CacheBackend {
	case config.CachePostgres:
		store = cache.NewPostgresStore(database.Pool())
	default:
		store = cache.NewMemoryStore()
	}
	c := cache.New(store, log.WithField("component", "cache"))
	janitor := cache.NewJanitor(store, janitorInterval, log.WithField("component", "cache_janitor"))

	client := discord.NewClient(discord.ClientConfig{
		Token:   cfg.DiscordToken,
		GuildID: cfg.DiscordGuildID,
		BaseURL: cfg.DiscordAPIBase,
		Timeout: cfg.DiscordTimeout,
	}, log.WithField("component", "discord"))
	resolver := discord.NewResolver(client, c, cfg.DiscordForumChannelID, log.WithField("component", "resolver"))

	hosts := append([]render.SourceHost{}, render.DefaultSourceHosts...)
	for _, domain := range cfg.SourceHosts {
		hosts = append(hosts, render.SourceHost{Domain: strings.ToLower(domain)})
	}

	renderer := render.NewRenderer(resolver,
		render.WithSourceHosts(hosts),
		render.WithLocation(cfg.EventTimezone),
		render.WithLogger(log.WithField("component", "render")),
	)

	event := calendar.Event{
		Start:     cfg.EventStart,
		TotalDays: cfg.EventDays,
		Location:  cfg.EventTimezone,
	}

	aggregator := activity.NewAggregator(
		activity.NewPGStore(database.Pool()),
		resolver,
		renderer,
		c,
		activity.Config{
			Event:           event,
			StatsTTL:        cfg.StatsTTL,
			LeaderboardSize: cfg.LeaderboardSize,
			FeedSize:        cfg.FeedSize,
			FeedWords:       cfg.FeedWords,
			Metrics:         activity.AllMetrics,
		},
		log.WithField("component", "aggregator"),
	)

	log.WithFields(logrus.Fields{
		"cache_backend": cfg.CacheBackend,
		"event_start":   cfg.EventStart.Format(time.RFC3339),
		"event_days":    cfg.EventDays,
		"timezone":      cfg.EventTimezone.String(),
	}).Info("Dashboard components initialized")

	return &App{
		Database:   database,
		Cache:      c,
		Janitor:    janitor,
		Resolver:   resolver,
		Renderer:   renderer,
		Aggregator: aggregator,
		Event:      event,
	}, nil
}

// Close stops the janitor and closes the database pool
func (a *App) Close() {
	a.Janitor.Stop()
	a.Database.Close()
}
