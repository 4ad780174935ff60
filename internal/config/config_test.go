package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadFrom(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Database.Seed)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 120, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "MEMORY")
	t.Setenv("DB_SEED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.local, http://b.local,")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "5")

	cfg := LoadFrom(viper.New())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Window)
}

func TestLoadSync(t *testing.T) {
	t.Setenv("SYNC_SERVER_URL", "http://pos.local:8080/")
	t.Setenv("SYNC_INTERVAL_SECONDS", "30")

	cfg := LoadSync(viper.New())

	assert.Equal(t, "http://pos.local:8080", cfg.ServerURL)
	assert.Equal(t, "pending-sales.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
}
