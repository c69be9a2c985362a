package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// ErrMissingToken is returned by Load when TELEGRAM_BOT_TOKEN is not set.
var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")

type Config struct {
	// Runtime
	Environment string
	LogLevel    string
	OpsPort     string

	// Telegram
	TelegramToken       string
	TelegramPollTimeout int
	TelegramDebug       bool

	// Remote key service
	APIBaseURL  string
	HealthURL   string
	HTTPTimeout time.Duration

	// Storage
	DatabaseURL string

	// Redis (optional, enables shared rate limiting)
	RedisURL string

	// Bot behaviour
	CommandRateLimit int
	DisplayTimezone  string
	DisplayLocation  *time.Location
	ChannelURL       string
}

func Load() (*Config, error) {
	// Missing .env files are fine; the environment may be set directly
	// (docker/systemd).
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	apiBaseURL := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3000/api"), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		OpsPort:     os.Getenv("OPS_PORT"),

		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramPollTimeout: getIntEnv("TELEGRAM_POLL_TIMEOUT", 60),
		TelegramDebug:       getBoolEnv("TELEGRAM_DEBUG", false),

		APIBaseURL:  apiBaseURL,
		HealthURL:   getEnv("HEALTH_URL", apiBaseURL+"/health"),
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 10*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", "telegram-bot.db"),
		RedisURL:    os.Getenv("REDIS_URL"),

		CommandRateLimit: getIntEnv("COMMAND_RATE_LIMIT", 20),
		DisplayTimezone:  getEnv("DISPLAY_TIMEZONE", "Asia/Kolkata"),
		ChannelURL:       os.Getenv("CHANNEL_URL"),
	}

	if _, set := os.LookupEnv("OPS_PORT"); !set {
		cfg.OpsPort = "8081"
	}

	if cfg.TelegramToken == "" {
		return nil, ErrMissingToken
	}

	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.DisplayLocation = loc

	return cfg, nil
}

// UsesPostgres reports whether DatabaseURL points at PostgreSQL rather than a
// SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
