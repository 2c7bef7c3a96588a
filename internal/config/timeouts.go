// Package config provides centralized timeout constants for the application.
//
// The poll loop is paced by two external constraints:
//   - Reddit throttles new accounts to roughly one comment per several minutes
//   - The course directory API is shared and slow under load
package config

import "time"

// Reply cooldowns
const (
	// SubmissionCooldown is how long a submission reply blocks the next reply on either stream.
	SubmissionCooldown = 9 * time.Minute

	// InboxCooldown is how long an inbox reply blocks the next reply on either stream.
	InboxCooldown = 3 * time.Minute

	// IdlePoll is how long the loop waits when both streams were empty in a cycle.
	IdlePoll = 30 * time.Second
)

// Outbound HTTP timeouts
const (
	// HTTPRequest is the timeout for a single outbound HTTP request.
	HTTPRequest = 30 * time.Second

	// HTTPRetryInitial is the initial delay before retrying a failed request.
	// Uses exponential backoff: 1s -> 2s -> 4s
	HTTPRetryInitial = 1 * time.Second

	// HTTPPacing is the minimum delay between consecutive requests to the same service.
	HTTPPacing = 1 * time.Second

	// DirectoryLookup bounds one course lookup including retries.
	DirectoryLookup = 45 * time.Second

	// ForumTokenRefreshMargin is how long before expiry the OAuth token is renewed.
	ForumTokenRefreshMargin = 2 * time.Minute
)

// HTTP server timeouts (health and metrics only)
const (
	ServerRead  = 10 * time.Second
	ServerWrite = 15 * time.Second
	ServerIdle  = 120 * time.Second

	// ReadinessCheckTimeout bounds the database ping in /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// CacheCleanupInterval is how often expired course cache rows are deleted.
	CacheCleanupInterval = 12 * time.Hour

	// MetricsUpdateInterval is how often gauge metrics are refreshed.
	MetricsUpdateInterval = time.Minute

	// LedgerBackup bounds a single snapshot upload or restore.
	LedgerBackup = 2 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the default timeout for graceful shutdown.
	GracefulShutdown = 30 * time.Second
)
