package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the Sisyphus API.
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisConfig carries the optional cache-layer connection details. When
// Enabled is false the application runs without a cache and without the
// sweep lock.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TodayTTL time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ClockSkewLeeway    time.Duration
	BcryptCost         int
}

// SchedulerConfig controls the background reset sweep.
type SchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	LockTTL       time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("SISYPHUS_API_HOST", "0.0.0.0"),
			Port:         getInt("SISYPHUS_API_PORT", 8080),
			ReadTimeout:  getDuration("SISYPHUS_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SISYPHUS_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("SISYPHUS_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "sisyphus_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "sisyphus"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			Addr:     getString("REDIS_ADDR", "localhost:6379"),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			TodayTTL: getDuration("SISYPHUS_TODAY_CACHE_TTL", 60*time.Second),
		},
		Auth: loadAuthConfig(),
		Scheduler: SchedulerConfig{
			Enabled:       getBool("SISYPHUS_SWEEP_ENABLED", true),
			SweepInterval: getDuration("SISYPHUS_SWEEP_INTERVAL", 5*time.Minute),
			LockTTL:       getDuration("SISYPHUS_SWEEP_LOCK_TTL", time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("SISYPHUS_METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("SISYPHUS_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("SISYPHUS_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("SISYPHUS_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("SISYPHUS_AUTH_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:    getDuration("SISYPHUS_AUTH_REFRESH_TOKEN_TTL", 168*time.Hour),
		ClockSkewLeeway:    getDuration("SISYPHUS_AUTH_CLOCK_SKEW_LEEWAY", 60*time.Second),
		BcryptCost:         cost,
	}
}
