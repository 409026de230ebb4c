package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for cleanlist.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// SchemaPath points at the target schema declaration (JSON or YAML).
	// The process refuses to start without it.
	SchemaPath string `yaml:"schema_path" env:"SCHEMA_PATH" env-default:"schema.json"`

	Upload       UploadConfig       `yaml:"upload"`
	Verification VerificationConfig `yaml:"verification"`
	Templates    TemplatesConfig    `yaml:"templates"`
	Session      SessionConfig      `yaml:"session"`

	// Database configuration (PostgreSQL), only used when templates.driver is "postgres"
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration, only used when templates.driver is "redis"
	Redis RedisConfig `yaml:"redis"`
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"33554432"`
}

// VerificationConfig configures the external email verification service.
type VerificationConfig struct {
	BaseURL string `yaml:"base_url" env:"VERIFICATION_BASE_URL" env-default:"https://api.neverbounce.com"`
	// Timeout bounds each single-address request.
	Timeout time.Duration `yaml:"timeout" env:"VERIFICATION_TIMEOUT" env-default:"5s"`
	// MaxConcurrent bounds outstanding requests per processing run.
	MaxConcurrent int `yaml:"max_concurrent" env:"VERIFICATION_MAX_CONCURRENT" env-default:"8"`
	// PrecheckFormat marks blank or malformed addresses invalid without a request.
	PrecheckFormat bool `yaml:"precheck_format" env:"VERIFICATION_PRECHECK_FORMAT" env-default:"true"`
	// APIKey is the fallback key used when a request does not carry one.
	APIKey string `yaml:"-" env:"NEVERBOUNCE_API_KEY"` // Secret - not in YAML
}

// Template storage drivers.
const (
	TemplateDriverFile     = "file"
	TemplateDriverPostgres = "postgres"
	TemplateDriverSQLite   = "sqlite"
	TemplateDriverRedis    = "redis"
)

// TemplatesConfig selects and configures the template store.
type TemplatesConfig struct {
	Driver         string `yaml:"driver" env:"TEMPLATES_DRIVER" env-default:"file"`
	Dir            string `yaml:"dir" env:"TEMPLATES_DIR" env-default:"templates"`
	SQLitePath     string `yaml:"sqlite_path" env:"TEMPLATES_SQLITE_PATH" env-default:"cleanlist.db"`
	MigrationsPath string `yaml:"migrations_path" env:"TEMPLATES_MIGRATIONS_PATH" env-default:"migrations"`
}

// SessionConfig configures upload sessions and the session cookie.
type SessionConfig struct {
	// Secret signs the session cookie. Env-only.
	Secret         string `yaml:"-" env:"SESSION_SECRET"`
	IdleTTLMinutes int    `yaml:"idle_ttl_minutes" env:"SESSION_IDLE_TTL_MINUTES" env-default:"60"`
	CookieSecure   bool   `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
}

// IdleTTL returns the idle expiry as a duration.
func (s *SessionConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLMinutes) * time.Minute
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"cleanlist"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"cleanlist"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// Key is the hash templates are stored under.
	Key string `yaml:"key" env:"REDIS_TEMPLATES_KEY" env-default:"cleanlist:templates"`
}

// Addr returns host:port, resolving the host for Docker.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error: defaults and environment are used.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	switch c.Templates.Driver {
	case TemplateDriverFile, TemplateDriverPostgres, TemplateDriverSQLite, TemplateDriverRedis:
	default:
		return fmt.Errorf("unknown templates.driver %q (want file, postgres, sqlite or redis)", c.Templates.Driver)
	}

	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("verification.timeout must be positive")
	}
	if c.Verification.MaxConcurrent < 1 {
		c.Verification.MaxConcurrent = 1
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the PostgreSQL connection as a URL, as expected by golang-migrate.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
