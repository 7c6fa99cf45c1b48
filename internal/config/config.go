// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
	Summary   SummaryConfig
	Report    ReportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds dataset store settings.
type DatabaseConfig struct {
	// Driver selects the store: sqlite or postgres (default: sqlite)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: chemflux.db)
	SQLitePath string `env:"SQLITE_PATH" default:"chemflux.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// StorageConfig holds raw upload storage settings.
type StorageConfig struct {
	// Backend selects where raw files live: disk or s3 (default: disk)
	Backend string `env:"STORAGE_BACKEND" default:"disk"`

	// Dir is the root directory for the disk backend (default: data/uploads)
	Dir string `env:"STORAGE_DIR" envAlt:"MEDIA_ROOT" default:"data/uploads"`

	// S3Bucket is the bucket for the s3 backend
	S3Bucket string `env:"S3_BUCKET_NAME"`

	// S3Region is the AWS region (default: us-east-1)
	S3Region string `env:"AWS_DEFAULT_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// S3Endpoint overrides the S3 endpoint, for MinIO and similar services
	S3Endpoint string `env:"S3_ENDPOINT"`

	// S3Prefix is prepended to every object key
	S3Prefix string `env:"S3_PREFIX"`

	// S3ForcePathStyle uses path-style addressing (default: false)
	S3ForcePathStyle bool `env:"S3_FORCE_PATH_STYLE" default:"false"`
}

// UploadConfig holds CSV upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel ingests (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingest slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single ingest (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAuth rejects unauthenticated API requests (default: false)
	RequireAuth bool `env:"REQUIRE_AUTH" envAlt:"REQUIRE_API_KEY" default:"false"`

	// APIKeys are accepted in the X-API-Key header
	APIKeys []string `env:"API_KEYS"`

	// BasicAuthUsers are user:password pairs accepted via HTTP Basic auth
	BasicAuthUsers []string `env:"BASIC_AUTH_USERS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds dataset history settings.
type RetentionConfig struct {
	// Window is how many datasets are kept, newest first (default: 5)
	Window int `env:"RETENTION_WINDOW" default:"5"`

	// SweepInterval is how often retention is re-applied in the background;
	// 0 applies it once at startup only (default: 1h)
	SweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" default:"1h"`
}

// SummaryConfig holds summary derivation settings.
type SummaryConfig struct {
	// CategoryColumns are the candidate categorical columns in priority order
	CategoryColumns []string `env:"SUMMARY_CATEGORY_COLUMNS" default:"Type,type,Equipment Type,equipment_type"`

	// NumericPolicy is strict or ignore-blanks (default: ignore-blanks)
	NumericPolicy string `env:"SUMMARY_NUMERIC_POLICY" default:"ignore-blanks"`

	// PreviewRows is how many leading rows are previewed (default: 10)
	PreviewRows int `env:"SUMMARY_PREVIEW_ROWS" default:"10"`
}

// ReportConfig holds PDF report settings.
type ReportConfig struct {
	// Title is the heading on every report (default: ChemFlux Report)
	Title string `env:"REPORT_TITLE" default:"ChemFlux Report"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
