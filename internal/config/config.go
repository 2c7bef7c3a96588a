// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and provides defaults for the poll loop, outbound HTTP and optional features.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Forum credentials
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string // Bot identity; also names the ledger file and the reply footer link
	RedditPassword     string

	// Forum
	Subreddit       string
	RedditUserAgent string
	RedditAuthURL   string
	RedditAPIURL    string

	// Course directory
	UWAPIKey        string
	UWAPIBaseURL    string
	CalendarBaseURL string
	CalendarEnabled bool

	// Poll loop
	SubmissionCooldown time.Duration
	InboxCooldown      time.Duration
	IdlePoll           time.Duration

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir  string        // Ledger file and SQLite cache live here
	CacheTTL time.Duration // Course lookup cache lifetime

	// Outbound HTTP
	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	// R2 ledger backup (optional)
	R2Enabled        bool
	R2AccountID      string
	R2AccessKeyID    string
	R2SecretKey      string
	R2BucketName     string
	R2SnapshotKey    string
	R2LockKey        string
	R2LockTTL        time.Duration
	R2BackupInterval time.Duration

	// Sentry (optional, Better Stack errors ingest)
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack logs (optional)
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string
}

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	cfg := LoadUnvalidated()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated reads configuration without validating credentials.
// Used by operator tooling that only needs the data directory.
func LoadUnvalidated() *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	username := getEnv(EnvRedditUsername, "")

	return &Config{
		RedditClientID:     getEnv(EnvRedditClientID, ""),
		RedditClientSecret: getEnv(EnvRedditClientSecret, ""),
		RedditUsername:     username,
		RedditPassword:     getEnv(EnvRedditPassword, ""),

		Subreddit:       getEnv(EnvSubreddit, "uwaterloo"),
		RedditUserAgent: getEnv(EnvRedditUserAgent, defaultUserAgent(username)),
		RedditAuthURL:   getEnv(EnvRedditAuthURL, "https://www.reddit.com"),
		RedditAPIURL:    getEnv(EnvRedditAPIURL, "https://oauth.reddit.com"),

		UWAPIKey:        getEnv(EnvUWAPIKey, ""),
		UWAPIBaseURL:    getEnv(EnvUWAPIBaseURL, "https://api.uwaterloo.ca/v2"),
		CalendarBaseURL: getEnv(EnvCalendarBaseURL, "https://ucalendar.uwaterloo.ca/2324/COURSE"),
		CalendarEnabled: getBoolEnv(EnvCalendarEnabled, true),

		SubmissionCooldown: getDurationEnv(EnvSubmissionCooldown, SubmissionCooldown),
		InboxCooldown:      getDurationEnv(EnvInboxCooldown, InboxCooldown),
		IdlePoll:           getDurationEnv(EnvIdlePoll, IdlePoll),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:  getEnv(EnvDataDir, getDefaultDataDir()),
		CacheTTL: getDurationEnv(EnvCacheTTL, 168*time.Hour), // TTL: 7 days

		HTTPTimeout:    getDurationEnv(EnvHTTPTimeout, HTTPRequest),
		HTTPMaxRetries: getIntEnv(EnvHTTPMaxRetries, 3),

		R2Enabled:        getBoolEnv(EnvR2Enabled, false),
		R2AccountID:      getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:    getEnv(EnvR2AccessKeyID, ""),
		R2SecretKey:      getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:     getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:    getEnv(EnvR2SnapshotKey, "ledger/"+ledgerFileName(username)+".zst"),
		R2LockKey:        getEnv(EnvR2LockKey, "locks/goose-bot-"+username),
		R2LockTTL:        getDurationEnv(EnvR2LockTTL, 5*time.Minute),
		R2BackupInterval: getDurationEnv(EnvR2BackupInterval, 15*time.Minute),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.RedditClientID == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvRedditClientID))
	}
	if c.RedditClientSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvRedditClientSecret))
	}
	if c.RedditUsername == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvRedditUsername))
	}
	if c.RedditPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvRedditPassword))
	}
	if c.Subreddit == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvSubreddit))
	}
	if c.UWAPIKey == "" && !c.CalendarEnabled {
		errs = append(errs, fmt.Errorf("either %s or %s=true is required for course lookups", EnvUWAPIKey, EnvCalendarEnabled))
	}
	if c.SubmissionCooldown <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSubmissionCooldown, c.SubmissionCooldown))
	}
	if c.InboxCooldown <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvInboxCooldown, c.InboxCooldown))
	}
	if c.IdlePoll <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvIdlePoll, c.IdlePoll))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCacheTTL, c.CacheTTL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvHTTPTimeout, c.HTTPTimeout))
	}
	if c.HTTPMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvHTTPMaxRetries, c.HTTPMaxRetries))
	}
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 backup enabled but account, access key, secret or bucket is missing"))
		}
		if c.R2LockTTL <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvR2LockTTL, c.R2LockTTL))
		}
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required when metrics auth is enabled", EnvMetricsPassword))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LedgerPath returns the reply ledger file for the configured bot identity.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, ledgerFileName(c.RedditUsername))
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// R2Endpoint returns the S3-compatible endpoint for the configured R2 account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

func ledgerFileName(botName string) string {
	return "submission_replies_u_" + botName + ".txt"
}

func defaultUserAgent(botName string) string {
	if botName == "" {
		return "goose-bot/1.0"
	}
	return "goose-bot/1.0 (by /u/" + botName + ")"
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
