// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the Hunter engine.
type Config struct {
	// Polymarket real-time data socket
	FeedWSURL    string
	PingInterval time.Duration

	// Polymarket HTTP APIs
	CLOBURL       string
	DataAPIURL    string
	PolymarketRPS float64

	// Telegram
	TelegramToken string
	TelegramRPS   float64
	EnableBot     bool

	// Database
	DatabaseURL string

	// Evaluation
	LiquidityZeroDisables bool
	QueueSize             int
	WorkerCount           int
	EvalConcurrency       int
	MaxOutstandingCalls   int

	// Per-call timeouts
	LiquidityTimeout time.Duration
	HistoryTimeout   time.Duration
	RegistryTimeout  time.Duration
	SendTimeout      time.Duration
	ShutdownTimeout  time.Duration

	// Metrics
	PrometheusPort int

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		FeedWSURL:    getEnv("POLYMARKET_FEED_URL", "wss://ws-live-data.polymarket.com"),
		PingInterval: time.Duration(getEnvInt("FEED_PING_SECONDS", 5)) * time.Second,

		CLOBURL:       getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		DataAPIURL:    getEnv("POLYMARKET_DATA_URL", "https://data-api.polymarket.com"),
		PolymarketRPS: getEnvFloat("POLYMARKET_RPS", 20),

		TelegramToken: getEnv("BOT_TOKEN", ""),
		TelegramRPS:   getEnvFloat("TELEGRAM_RPS", 25),
		EnableBot:     getEnvBool("ENABLE_BOT", true),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		LiquidityZeroDisables: getEnvBool("LIQUIDITY_ZERO_DISABLES", false),
		QueueSize:             getEnvInt("QUEUE_SIZE", 1000),
		WorkerCount:           getEnvInt("WORKER_COUNT", 4),
		EvalConcurrency:       getEnvInt("EVAL_CONCURRENCY", 8),
		MaxOutstandingCalls:   getEnvInt("MAX_OUTSTANDING_CALLS", 32),

		LiquidityTimeout: time.Duration(getEnvInt("LIQUIDITY_TIMEOUT_MS", 3000)) * time.Millisecond,
		HistoryTimeout:   time.Duration(getEnvInt("HISTORY_TIMEOUT_MS", 3000)) * time.Millisecond,
		RegistryTimeout:  time.Duration(getEnvInt("REGISTRY_TIMEOUT_MS", 2000)) * time.Millisecond,
		SendTimeout:      time.Duration(getEnvInt("SEND_TIMEOUT_MS", 5000)) * time.Millisecond,
		ShutdownTimeout:  time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,

		PrometheusPort: getEnvInt("PROMETHEUS_PORT", 9090),

		EnableTUI:     getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.FeedWSURL == "" {
		return fmt.Errorf("POLYMARKET_FEED_URL is required")
	}

	if c.TelegramToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.EvalConcurrency < 1 {
		return fmt.Errorf("EVAL_CONCURRENCY must be at least 1")
	}

	if c.MaxOutstandingCalls < c.EvalConcurrency {
		return fmt.Errorf("MAX_OUTSTANDING_CALLS must be at least EVAL_CONCURRENCY")
	}

	if c.PolymarketRPS <= 0 || c.TelegramRPS <= 0 {
		return fmt.Errorf("POLYMARKET_RPS and TELEGRAM_RPS must be positive")
	}

	for name, d := range map[string]time.Duration{
		"LIQUIDITY_TIMEOUT_MS": c.LiquidityTimeout,
		"HISTORY_TIMEOUT_MS":   c.HistoryTimeout,
		"REGISTRY_TIMEOUT_MS":  c.RegistryTimeout,
		"SEND_TIMEOUT_MS":      c.SendTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.PrometheusPort < 0 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 0 and 65535")
	}

	return nil
}

// MaskedTelegramToken returns the bot token with most characters hidden for logging.
func (c *Config) MaskedTelegramToken() string {
	return maskSecret(c.TelegramToken)
}

// MaskedDatabaseURL returns the database URL with most characters hidden for logging.
func (c *Config) MaskedDatabaseURL() string {
	return maskSecret(c.DatabaseURL)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
