package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends
const (
	CacheMemory   = "memory"
	CachePostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string
	CORSOrigins []string

	// Per-IP requests per minute
	GlobalRateLimit int
	FeedRateLimit   int

	// Discord
	DiscordToken          string
	DiscordGuildID        string
	DiscordForumChannelID string
	DiscordAPIBase        string
	DiscordTimeout        time.Duration

	// Event window
	EventStart    time.Time
	EventDays     int
	EventTimezone *time.Location

	// Aggregation
	StatsTTL        time.Duration
	CacheBackend    string
	LeaderboardSize int
	FeedSize        int
	FeedWords       int
	WarmInterval    time.Duration

	// Extra code hosts whose links render as badges
	SourceHosts []string
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	guildID := os.Getenv("DISCORD_GUILD_ID")
	if guildID == "" {
		return nil, fmt.Errorf("DISCORD_GUILD_ID is required")
	}

	rawStart := os.Getenv("EVENT_START")
	if rawStart == "" {
		return nil, fmt.Errorf("EVENT_START is required")
	}
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return nil, fmt.Errorf("EVENT_START must be RFC3339: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("EVENT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIMEZONE: %w", err)
	}

	backend := getEnv("CACHE_BACKEND", CacheMemory)
	if backend != CacheMemory && backend != CachePostgres {
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CachePostgres, backend)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: dbURL,
		CORSOrigins: getList("CORS_ORIGINS"),

		GlobalRateLimit: getInt("RATE_LIMIT_GLOBAL", 100),
		FeedRateLimit:   getInt("RATE_LIMIT_FEED", 30),

		DiscordToken:          token,
		DiscordGuildID:        guildID,
		DiscordForumChannelID: os.Getenv("DISCORD_FORUM_CHANNEL_ID"),
		DiscordAPIBase:        getEnv("DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordTimeout:        getDuration("DISCORD_TIMEOUT", 10*time.Second),

		EventStart:    start,
		EventDays:     getInt("EVENT_DAYS", 20),
		EventTimezone: loc,

		StatsTTL:        getDuration("STATS_TTL", 15*time.Second),
		CacheBackend:    backend,
		LeaderboardSize: getInt("LEADERBOARD_SIZE", 10),
		FeedSize:        getInt("FEED_SIZE", 10),
		FeedWords:       getInt("FEED_WORDS", 50),
		WarmInterval:    getDuration("WARM_INTERVAL", 0),

		SourceHosts: getList("SOURCE_HOSTS"),
	}

	if cfg.EventDays < 1 {
		return nil, fmt.Errorf("EVENT_DAYS must be positive, got %d", cfg.EventDays)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
