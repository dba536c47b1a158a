// Package config loads the configurator's settings from environment
// variables, applies defaults and validates the result on startup so a
// misconfigured data path fails before the first request.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Catalog sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Database DatabaseConfig
	Session  SessionConfig
	Export   ExportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DataConfig names the catalog, price matrix and template sources.
type DataConfig struct {
	// CatalogSource is "file" or "postgres" (default: file)
	CatalogSource string `env:"CATALOG_SOURCE" default:"file"`

	// CatalogPath is the catalog workbook or csv when CatalogSource is file.
	CatalogPath  string `env:"CATALOG_PATH" default:"raw-data.xlsx"`
	CatalogSheet string `env:"CATALOG_SHEET" default:"APP"`

	// CatalogTable is read when CatalogSource is postgres.
	CatalogTable string `env:"CATALOG_TABLE" default:"catalog"`

	// EUPricePath is the price matrix workbook of the EU segment (required).
	EUPricePath string `env:"EU_PRICE_PATH" envAlt:"PRICE_MATRIX_EUROPE" default:"price-matrix_EUROPE.xlsx"`

	// UKIEPricePath is the price matrix workbook of the UK/IE segment.
	// Empty means UK/IE prices are unavailable.
	UKIEPricePath string `env:"UKIE_PRICE_PATH" envAlt:"PRICE_MATRIX_GBP_IE"`

	WholesaleSheet string `env:"PRICE_WHOLESALE_SHEET" default:"Price matrix wholesale"`
	RetailSheet    string `env:"PRICE_RETAIL_SHEET" default:"Price matrix retail"`

	// TemplatePath is the masterdata template whose header row sets the export columns.
	TemplatePath string `env:"TEMPLATE_PATH" default:"Masterdata-output-template.xlsx"`

	// SharedMarketTags are catalog market values accepted by every segment.
	SharedMarketTags []string `env:"MARKET_SHARED_TAGS"`
}

// DatabaseConfig holds database connection settings. Only used when the
// catalog is read from PostgreSQL.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// LoadTimeout bounds the catalog query at startup (default: 30s)
	LoadTimeout time.Duration `env:"DB_LOAD_TIMEOUT" default:"30s"`
}

// SessionConfig holds configurator session settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// SweepInterval is how often idle sessions are removed (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// MaxSessions caps live sessions; 0 means unlimited (default: 1000)
	MaxSessions int `env:"SESSION_MAX" default:"1000"`
}

// ExportConfig holds export generation settings.
type ExportConfig struct {
	// MaxConcurrent is the maximum number of parallel export builds (default: 4)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an export slot (default: 10s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ExportLimit is requests per minute for export downloads (default: 20)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys.
	APIKeys []string `env:"API_KEYS"`
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

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Data validation
	switch strings.ToLower(c.Data.CatalogSource) {
	case SourceFile:
		if c.Data.CatalogPath == "" {
			errs = append(errs, "CATALOG_PATH is required when CATALOG_SOURCE is file")
		}
	case SourcePostgres:
		if c.Data.CatalogTable == "" {
			errs = append(errs, "CATALOG_TABLE is required when CATALOG_SOURCE is postgres")
		}
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when CATALOG_SOURCE is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("CATALOG_SOURCE (%q) must be one of: file, postgres", c.Data.CatalogSource))
	}
	if c.Data.EUPricePath == "" {
		errs = append(errs, "EU_PRICE_PATH is required")
	}
	if c.Data.TemplatePath == "" {
		errs = append(errs, "TEMPLATE_PATH is required")
	}
	if c.Data.WholesaleSheet == "" || c.Data.RetailSheet == "" {
		errs = append(errs, "PRICE_WHOLESALE_SHEET and PRICE_RETAIL_SHEET must not be empty")
	}

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Session validation
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, "SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, "SESSION_MAX must be non-negative")
	}

	// Export validation
	if c.Export.MaxConcurrent <= 0 {
		errs = append(errs, "EXPORT_MAX_CONCURRENT must be positive")
	}
	if c.Export.MaxWaitTime <= 0 {
		errs = append(errs, "EXPORT_MAX_WAIT_TIME must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ExportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_EXPORT must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Database.URL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Data: {CatalogSource: %q, CatalogPath: %q, EUPricePath: %q, UKIEPricePath: %q, TemplatePath: %q}, ",
		c.Data.CatalogSource, c.Data.CatalogPath, c.Data.EUPricePath, c.Data.UKIEPricePath, c.Data.TemplatePath)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", dbURL, c.Database.MaxConns)
	fmt.Fprintf(&b, "Session: {TTL: %s}, Export: {MaxConcurrent: %d}, ", c.Session.TTL, c.Export.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
