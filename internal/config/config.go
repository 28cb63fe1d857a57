package config

import (
	"github.com/catalystcommunity/app-utils-go/env"
)

var (
	// DbUri is the database connection string
	DbUri string

	// Port is the HTTP server port
	Port int

	// CommitOnSuccess determines if transactions should be committed on successful responses (2xx status)
	// Default is true, but can be set to false for testing environments
	CommitOnSuccess = env.GetEnvAsBoolOrDefault("ATC_COMMIT_ON_SUCCESS", "true")

	// JwtSecret signs and verifies user session JWTs. The main backend mints
	// sessions with the same secret; token encryption keys derive from it too.
	JwtSecret   = env.GetEnvOrDefault("ATC_JWT_SECRET", "")
	JwtIssuer   = env.GetEnvOrDefault("ATC_JWT_ISSUER", "")
	JwtAudience = env.GetEnvOrDefault("ATC_JWT_AUDIENCE", "")

	// ServiceToken authenticates internal consumers (session executors) on the
	// /internal routes. Empty disables the internal surface.
	ServiceToken = env.GetEnvOrDefault("ATC_SERVICE_TOKEN", "")

	// EncryptionPassphrase optionally replaces the JWT-secret key derivation
	// for standalone deployments that do not share a secret with the backend.
	EncryptionPassphrase = env.GetEnvOrDefault("ATC_ENCRYPTION_PASSPHRASE", "")

	// CORS
	CorsAllowedOrigins = env.GetEnvOrDefault("ATC_CORS_ALLOWED_ORIGINS", "*")

	// Claude CLI validation settings
	ClaudeCliPath             = env.GetEnvOrDefault("ATC_CLAUDE_CLI_PATH", "claude")
	ValidationTimeoutSeconds  = env.GetEnvAsIntOrDefault("ATC_VALIDATION_TIMEOUT_SECONDS", "60")
	ValidateRatePerMinute     = env.GetEnvAsIntOrDefault("ATC_VALIDATE_RATE_PER_MINUTE", "6")
	ValidateBurst             = env.GetEnvAsIntOrDefault("ATC_VALIDATE_BURST", "3")
	RateLimitedBackoffHours   = env.GetEnvAsIntOrDefault("ATC_RATE_LIMITED_BACKOFF_HOURS", "5")

	// Default user for development bootstrap
	DefaultUserID       = env.GetEnvOrDefault("ATC_DEFAULT_USER_ID", "")
	DefaultUserName     = env.GetEnvOrDefault("ATC_DEFAULT_USER_NAME", "admin")
	DefaultUserEmail    = env.GetEnvOrDefault("ATC_DEFAULT_USER_EMAIL", "")

	// Snapshot archiver configuration
	SnapshotIntervalMinutes = env.GetEnvAsIntOrDefault("ATC_SNAPSHOT_INTERVAL_MINUTES", "0")
	SnapshotRetention       = env.GetEnvAsIntOrDefault("ATC_SNAPSHOT_RETENTION", "288")

	// Archive store configuration
	ArchiveBackend  = env.GetEnvOrDefault("ATC_ARCHIVE_BACKEND", "filesystem") // s3, filesystem, memory
	ArchiveBasePath = env.GetEnvOrDefault("ATC_ARCHIVE_BASE_PATH", "./snapshots")
	ArchiveBucket   = env.GetEnvOrDefault("ATC_ARCHIVE_S3_BUCKET", "atc-pool-snapshots")
	ArchivePrefix   = env.GetEnvOrDefault("ATC_ARCHIVE_S3_PREFIX", "atc/")
	ArchiveRegion   = env.GetEnvOrDefault("ATC_ARCHIVE_S3_REGION", "")
	ArchiveEndpoint = env.GetEnvOrDefault("ATC_ARCHIVE_S3_ENDPOINT", "")

	// Resource monitor sampling interval, zero disables the monitor
	MonitorIntervalSeconds = env.GetEnvAsIntOrDefault("ATC_MONITOR_INTERVAL_SECONDS", "30")
)
