// Package config provides centralized configuration management for csvkit.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net/netip"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/export"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CSV      CSVConfig
	Export   ExportConfig
	Jobs     JobConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings for `csvkit serve`.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default: operations answer only when finished
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// TrustedProxies is a comma-separated list of proxy CIDRs allowed to set X-Real-IP
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// MetricsEnabled exposes /metrics (default: true)
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key.
	// Empty disables authentication on /api routes.
	APIKeys []string `env:"API_KEYS"`
}

// DatabaseConfig holds connection pool settings applied to Postgres sources.
type DatabaseConfig struct {
	// MaxConns is the maximum number of pooled connections per source (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial connect; 0 keeps the driver default
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"0s"`
}

// CSVConfig holds settings shared by the file operations.
type CSVConfig struct {
	// OutputDelimiter is the delimiter of every file written (default: |)
	OutputDelimiter string `env:"CSV_OUTPUT_DELIMITER" default:"|"`

	// SanitizeUTF8 replaces invalid UTF-8 input instead of failing (default: false)
	SanitizeUTF8 bool `env:"CSV_SANITIZE_UTF8" default:"false"`

	// ContextCheckInterval is how often, in rows, cancellation is checked (default: 1000)
	ContextCheckInterval int `env:"CSV_CONTEXT_CHECK_INTERVAL" default:"1000"`
}

// ExportConfig holds the exporter's deployment-specific rules.
type ExportConfig struct {
	// ConnectionURL is the default lookup store URL
	ConnectionURL string `env:"EXPORT_CONNECTION_URL" envAlt:"DATABASE_URL"`

	// QueryURL is the default data store URL; falls back to ConnectionURL
	QueryURL string `env:"EXPORT_QUERY_URL"`

	// PageSize is the journal window in rows (default: 3000000)
	PageSize int64 `env:"EXPORT_PAGE_SIZE" default:"3000000"`

	// EntitySeparator splits the entity name (default: _)
	EntitySeparator string `env:"EXPORT_ENTITY_SEPARATOR" default:"_"`

	// EntityToken is the zero-based token used as file prefix (default: 2)
	EntityToken int `env:"EXPORT_ENTITY_TOKEN" default:"2"`

	LookupTable      string `env:"EXPORT_LOOKUP_TABLE" default:"entity_schema"`
	LookupNameColumn string `env:"EXPORT_LOOKUP_NAME_COLUMN" default:"entity_name"`
	LookupCodeColumn string `env:"EXPORT_LOOKUP_CODE_COLUMN" default:"schema_name"`
	JournalTable     string `env:"EXPORT_JOURNAL_TABLE" default:"gl_journal"`
	BalanceTable     string `env:"EXPORT_BALANCE_TABLE" default:"tb_balance"`
}

// JobConfig bounds operations started over HTTP.
type JobConfig struct {
	// MaxConcurrent is the maximum number of parallel operations (default: 2)
	MaxConcurrent int `env:"JOB_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"JOB_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single operation; 0 means no limit (default: 0s)
	Timeout time.Duration `env:"JOB_TIMEOUT" default:"0s"`
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

// Unauthenticated reports whether the API would accept requests from other
// hosts without an API key. The API reads and writes any path the server
// process can reach.
func (c *ServerConfig) Unauthenticated() bool {
	if len(c.APIKeys) > 0 {
		return false
	}
	if c.Host == "localhost" {
		return false
	}
	addr, err := netip.ParseAddr(c.Host)
	return err != nil || !addr.IsLoopback()
}

// CoreOptions returns the file-operation options. Validate has already
// checked the delimiter, so the parse error is ignored.
func (c *Config) CoreOptions() core.Options {
	d, _ := core.ParseDelimiter(c.CSV.OutputDelimiter)
	return core.Options{OutputDelimiter: d, SanitizeUTF8: c.CSV.SanitizeUTF8}
}

// ExportSettings returns exporter settings built from the Export, CSV and
// Database sections.
func (c *Config) ExportSettings() export.Settings {
	d, _ := core.ParseDelimiter(c.CSV.OutputDelimiter)
	return export.Settings{
		PageSize:         c.Export.PageSize,
		EntitySeparator:  c.Export.EntitySeparator,
		EntityToken:      c.Export.EntityToken,
		LookupTable:      c.Export.LookupTable,
		LookupNameColumn: c.Export.LookupNameColumn,
		LookupCodeColumn: c.Export.LookupCodeColumn,
		JournalTable:     c.Export.JournalTable,
		BalanceTable:     c.Export.BalanceTable,
		Delimiter:        d,
		Pool: export.PoolSettings{
			MaxConns:        c.Database.MaxConns,
			MinConns:        c.Database.MinConns,
			MaxConnLifetime: c.Database.MaxConnLifetime,
			MaxConnIdleTime: c.Database.MaxConnIdleTime,
			ConnectTimeout:  c.Database.ConnectTimeout,
		},
	}
}
