package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Supported values for DATA_BACKEND and PASSWORD_SCHEME.
var (
	ValidBackends        = []string{"memory", "sqlite", "postgres", "mongo"}
	ValidPasswordSchemes = []string{"plain", "bcrypt"}
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Postgres
	PostgresDSN string

	// MongoDB
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Record cache in front of the backend
	CacheSize int
	CacheTTL  time.Duration

	// Sessions and credentials
	SessionTTL     time.Duration
	PasswordScheme string

	// AMQP (optional month-archived notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	SeedDir string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/allowance.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDatabase:   getEnv("MONGODB_DB", "allowance"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "user_records"),

		CacheSize: getEnvInt("CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),

		SessionTTL:     getEnvDuration("SESSION_TTL", 12*time.Hour),
		PasswordScheme: getEnv("PASSWORD_SCHEME", "plain"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "allowance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "month_archived"),

		SeedDir: getEnv("SEED_DIR", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(ValidBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, ValidBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "mongo":
		if c.MongoURI == "" {
			errors = append(errors, "MONGODB_URI is required when using mongo backend")
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			errors = append(errors, "MONGODB_DB and MONGODB_COLLECTION cannot be empty when using mongo backend")
		}
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheSize > 0 && c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 30 days", c.SessionTTL))
	}

	if !slices.Contains(ValidPasswordSchemes, c.PasswordScheme) {
		errors = append(errors, fmt.Sprintf("invalid password scheme '%s': must be one of %v", c.PasswordScheme, ValidPasswordSchemes))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// NotificationsEnabled reports whether month-archived messages should be published.
func (c *Config) NotificationsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
