// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Forum (Required)
	EnvRedditClientID     = "GOOSE_REDDIT_CLIENT_ID"
	EnvRedditClientSecret = "GOOSE_REDDIT_CLIENT_SECRET"
	EnvRedditUsername     = "GOOSE_REDDIT_USERNAME"
	EnvRedditPassword     = "GOOSE_REDDIT_PASSWORD"

	// Forum
	EnvSubreddit       = "GOOSE_SUBREDDIT"
	EnvRedditUserAgent = "GOOSE_REDDIT_USER_AGENT"
	EnvRedditAuthURL   = "GOOSE_REDDIT_AUTH_URL"
	EnvRedditAPIURL    = "GOOSE_REDDIT_API_URL"

	// Course directory
	EnvUWAPIKey        = "GOOSE_UW_API_KEY"
	EnvUWAPIBaseURL    = "GOOSE_UW_API_BASE_URL"
	EnvCalendarBaseURL = "GOOSE_CALENDAR_BASE_URL"
	EnvCalendarEnabled = "GOOSE_CALENDAR_ENABLED"

	// Poll loop
	EnvSubmissionCooldown = "GOOSE_SUBMISSION_COOLDOWN"
	EnvInboxCooldown      = "GOOSE_INBOX_COOLDOWN"
	EnvIdlePoll           = "GOOSE_IDLE_POLL"

	// Server
	EnvPort            = "GOOSE_PORT"
	EnvLogLevel        = "GOOSE_LOG_LEVEL"
	EnvShutdownTimeout = "GOOSE_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir  = "GOOSE_DATA_DIR"
	EnvCacheTTL = "GOOSE_CACHE_TTL"

	// Outbound HTTP
	EnvHTTPTimeout    = "GOOSE_HTTP_TIMEOUT"
	EnvHTTPMaxRetries = "GOOSE_HTTP_MAX_RETRIES"

	// R2 Ledger Backup Feature
	EnvR2Enabled         = "GOOSE_R2_ENABLED"
	EnvR2AccountID       = "GOOSE_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "GOOSE_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "GOOSE_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "GOOSE_R2_BUCKET_NAME"
	EnvR2SnapshotKey     = "GOOSE_R2_SNAPSHOT_KEY"
	EnvR2LockKey         = "GOOSE_R2_LOCK_KEY"
	EnvR2LockTTL         = "GOOSE_R2_LOCK_TTL"
	EnvR2BackupInterval  = "GOOSE_R2_BACKUP_INTERVAL"

	// Sentry Feature
	EnvSentryToken       = "GOOSE_SENTRY_TOKEN"
	EnvSentryHost        = "GOOSE_SENTRY_HOST"
	EnvSentryEnvironment = "GOOSE_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "GOOSE_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "GOOSE_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "GOOSE_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "GOOSE_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "GOOSE_METRICS_USERNAME"
	EnvMetricsPassword    = "GOOSE_METRICS_PASSWORD"
)
