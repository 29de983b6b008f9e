// Package config provides centralized configuration management for the importer.
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
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Schema   SchemaConfig
	Notify   NotifyConfig
	Security SecurityConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 5m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds inbox and file processing settings.
type ImportConfig struct {
	// InputDir is the folder scanned for new files (default: data/input)
	InputDir string `env:"IMPORT_INPUT_DIR" default:"data/input"`

	// ImportedDir receives files whose rows were all accepted (default: data/imported)
	ImportedDir string `env:"IMPORT_IMPORTED_DIR" default:"data/imported"`

	// BrokenDir receives files with at least one rejected row (default: data/broken)
	BrokenDir string `env:"IMPORT_BROKEN_DIR" default:"data/broken"`

	// PollInterval is how often the inbox is scanned (default: 5m)
	PollInterval time.Duration `env:"IMPORT_POLL_INTERVAL" default:"5m"`

	// MaxConcurrentFiles bounds files processed in parallel within a batch (default: 4)
	MaxConcurrentFiles int `env:"IMPORT_MAX_CONCURRENT_FILES" default:"4"`

	// MaxFileSize is the maximum accepted file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// MaxWaitTime is how long an HTTP import waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// DefaultAuthor is used when a file carries no author sidecar
	DefaultAuthor string `env:"IMPORT_DEFAULT_AUTHOR" default:"unknown"`
}

// SchemaConfig selects and configures the descriptive schema provider.
type SchemaConfig struct {
	// Source is "file" or "remote" (default: file)
	Source string `env:"SCHEMA_SOURCE" default:"file"`

	// Path is the static schema document for Source=file
	Path string `env:"SCHEMA_PATH" default:"descriptive_data.yaml"`

	// URL is the schema endpoint for Source=remote
	URL string `env:"SCHEMA_URL"`

	// Token is sent as a bearer token to the remote schema service
	Token string `env:"SCHEMA_TOKEN"`

	// Timeout bounds a single remote fetch attempt (default: 10s)
	Timeout time.Duration `env:"SCHEMA_TIMEOUT" default:"10s"`

	// RetryMax is the number of retries for the remote fetch (default: 2)
	RetryMax int `env:"SCHEMA_RETRY_MAX" default:"2"`
}

// NotifyConfig holds settings for the rejected-file notification sender.
type NotifyConfig struct {
	// Enabled sends reports over SMTP; when false reports are only logged
	Enabled bool `env:"NOTIFY_ENABLED" default:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"SMTP_FROM" default:"importer@localhost"`

	// FallbackTo receives reports whose author is not an email address
	FallbackTo string `env:"NOTIFY_FALLBACK_TO"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key validation on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys. An entry of the
	// form name=key also names the caller, who becomes the author of files
	// it uploads.
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RateLimit is the number of requests per minute per client IP; 0 disables (default: 100)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"100"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled registers collectors and serves /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
