package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/commitboard")
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "1")
	t.Setenv("EVENT_START", "2025-03-01T00:00:00Z")
	for _, key := range []string{
		"PORT", "ENV", "EVENT_DAYS", "EVENT_TIMEZONE", "STATS_TTL", "CACHE_BACKEND",
		"CORS_ORIGINS", "WARM_INTERVAL", "FEED_WORDS", "DISCORD_TIMEOUT", "SOURCE_HOSTS",
		"RATE_LIMIT_GLOBAL", "RATE_LIMIT_FEED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 20, cfg.EventDays)
	assert.Equal(t, "UTC", cfg.EventTimezone.String())
	assert.Equal(t, 15*time.Second, cfg.StatsTTL)
	assert.Equal(t, 10*time.Second, cfg.DiscordTimeout)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 50, cfg.FeedWords)
	assert.Equal(t, time.Duration(0), cfg.WarmInterval)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Empty(t, cfg.SourceHosts)
	assert.Equal(t, 100, cfg.GlobalRateLimit)
	assert.Equal(t, 30, cfg.FeedRateLimit)
	assert.True(t, cfg.EventStart.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("EVENT_DAYS", "14")
	t.Setenv("EVENT_TIMEZONE", "America/New_York")
	t.Setenv("STATS_TTL", "30s")
	t.Setenv("CACHE_BACKEND", "postgres")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SOURCE_HOSTS", "git.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 14, cfg.EventDays)
	assert.Equal(t, "America/New_York", cfg.EventTimezone.String())
	assert.Equal(t, 30*time.Second, cfg.StatsTTL)
	assert.Equal(t, CachePostgres, cfg.CacheBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"git.example.org"}, cfg.SourceHosts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"missing token", map[string]string{"DISCORD_TOKEN": ""}},
		{"missing guild", map[string]string{"DISCORD_GUILD_ID": ""}},
		{"missing start", map[string]string{"EVENT_START": ""}},
		{"bad start", map[string]string{"EVENT_START": "March 1st"}},
		{"bad timezone", map[string]string{"EVENT_TIMEZONE": "Mars/Base"}},
		{"bad backend", map[string]string{"CACHE_BACKEND": "redis"}},
		{"zero days", map[string]string{"EVENT_DAYS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
