// ABOUTME: Configuration loading and parsing for warelay
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete warelay configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Upload   UploadConfig   `yaml:"upload"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// DatabaseConfig holds the account database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WhatsAppConfig holds session driver and history configuration
type WhatsAppConfig struct {
	SessionName string `yaml:"session_name"`
	Driver      string `yaml:"driver"`

	// DefaultCountryCode is prepended to bare 10-digit phone numbers.
	// Empty disables the prefixing entirely.
	DefaultCountryCode string `yaml:"default_country_code"`

	// HistoryCapacity bounds the per-conversation message log.
	HistoryCapacity int `yaml:"history_capacity"`
}

// UploadConfig holds attachment upload configuration
type UploadConfig struct {
	Directory   string `yaml:"directory"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when fields are absent from the YAML file.
const (
	DefaultTokenTTL        = 24 * time.Hour
	DefaultHistoryCapacity = 1000
	DefaultMaxFileSize     = 10 << 20 // 10MB
	DefaultUploadDir       = "uploads"
	DefaultDriver          = "sim"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values for fields the YAML file left unset.
func (c *Config) applyDefaults() {
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.WhatsApp.HistoryCapacity == 0 {
		c.WhatsApp.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.WhatsApp.Driver == "" {
		c.WhatsApp.Driver = DefaultDriver
	}
	if c.WhatsApp.SessionName == "" {
		c.WhatsApp.SessionName = "warelay-session"
	}
	if c.Upload.Directory == "" {
		c.Upload.Directory = DefaultUploadDir
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.WhatsApp.HistoryCapacity < 0 {
		return fmt.Errorf("whatsapp.history_capacity must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func (c *Config) parseDurations() error {
	if c.Auth.TokenTTLRaw != "" {
		ttl, err := time.ParseDuration(c.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", c.Auth.TokenTTLRaw, err)
		}
		c.Auth.TokenTTL = ttl
	}
	return nil
}
