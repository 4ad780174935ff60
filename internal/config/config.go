package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	Schema       string
	MaxOpenConns int
	Seed         bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a redis host was configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port for the redis client
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SyncConfig configures the offline reconciliation agent
type SyncConfig struct {
	ServerURL     string
	DBPath        string
	Interval      time.Duration
	ProbeInterval time.Duration
	HTTPTimeout   time.Duration
	Env           string
	LogLevel      string
}

func setup(v *viper.Viper) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not read .env file: %v", err)
	}
	v.AutomaticEnv()
}

// Load reads the API server configuration from the environment
func Load() *Config {
	return LoadFrom(viper.New())
}

// LoadFrom reads the API server configuration through v
func LoadFrom(v *viper.Viper) *Config {
	setup(v)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 15)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_SEED", false)
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			RequestTimeout: seconds(v.GetInt("REQUEST_TIMEOUT_SECONDS")),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Database:     v.GetString("DB_DATABASE"),
			Schema:       v.GetString("DB_SCHEMA"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			Seed:         v.GetBool("DB_SEED"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   seconds(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")),
		},
	}
}

// LoadSync reads the sync agent configuration through v. Flags bound to v
// with BindPFlags take precedence over the environment.
func LoadSync(v *viper.Viper) *SyncConfig {
	setup(v)

	v.SetDefault("SYNC_SERVER_URL", "http://localhost:8080")
	v.SetDefault("SYNC_DB_PATH", "pending-sales.db")
	v.SetDefault("SYNC_INTERVAL_SECONDS", 300)
	v.SetDefault("SYNC_PROBE_SECONDS", 15)
	v.SetDefault("SYNC_HTTP_TIMEOUT_SECONDS", 15)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")

	return &SyncConfig{
		ServerURL:     strings.TrimRight(v.GetString("SYNC_SERVER_URL"), "/"),
		DBPath:        v.GetString("SYNC_DB_PATH"),
		Interval:      seconds(v.GetInt("SYNC_INTERVAL_SECONDS")),
		ProbeInterval: seconds(v.GetInt("SYNC_PROBE_SECONDS")),
		HTTPTimeout:   seconds(v.GetInt("SYNC_HTTP_TIMEOUT_SECONDS")),
		Env:           v.GetString("SERVER_ENV"),
		LogLevel:      v.GetString("LOG_LEVEL"),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
