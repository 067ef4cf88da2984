package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL; SQLite at DBPath is used when empty
	DBPath      string
	RedisURL    string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations

	// Inbox
	InboxParallelQueries bool
	InboxDefaultLimit    int
	InboxMaxLimit        int
	UnreadWindow         int
	UnreadCacheTTL       time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DBPath:               getEnv("DB_PATH", "./data/mjmember.db"),
		RedisURL:             os.Getenv("REDIS_URL"),
		AutoBlockEnabled:     getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
		InboxParallelQueries: getEnv("INBOX_PARALLEL_QUERIES", "false") == "true",
		InboxDefaultLimit:    getEnvInt("INBOX_DEFAULT_LIMIT", 20),
		InboxMaxLimit:        getEnvInt("INBOX_MAX_LIMIT", 100),
		UnreadWindow:         getEnvInt("UNREAD_WINDOW", 99),
		UnreadCacheTTL:       getEnvDuration("UNREAD_CACHE_TTL", 30*time.Second),
	}

	if cfg.InboxMaxLimit < 1 {
		cfg.InboxMaxLimit = 100
	}
	if cfg.InboxDefaultLimit < 1 || cfg.InboxDefaultLimit > cfg.InboxMaxLimit {
		cfg.InboxDefaultLimit = min(20, cfg.InboxMaxLimit)
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require database and redis URLs
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d >= 0 {
		return d
	}
	return defaultValue
}
