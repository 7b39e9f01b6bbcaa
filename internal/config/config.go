// ABOUTME: Configuration loading and parsing for groupme-backup
// ABOUTME: Reads an optional YAML or TOML file, then applies environment variable overrides

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigEnvVar names the environment variable holding an optional config file path
const ConfigEnvVar = "GROUPME_BACKUP_CONFIG"

// Environment variables that override file values
const (
	EnvDatabase       = "DATABASE"
	EnvDatabaseDriver = "DATABASE_DRIVER"
	EnvGroupID        = "GROUP_ID"
	EnvToken          = "TOKEN"
	EnvAPIURL         = "API_URL"
	EnvAPIRate        = "API_RATE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Defaults
const (
	DefaultDriver    = "sqlite"
	DefaultAPIURL    = "https://api.groupme.com"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "color"
)

// Config represents the complete groupme-backup configuration.
// It is built once at startup and not modified afterwards.
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	GroupMe  GroupMeConfig  `yaml:"groupme" toml:"groupme"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// GroupMeConfig identifies the group to mirror and how to reach the API
type GroupMeConfig struct {
	GroupID string `yaml:"group_id" toml:"group_id"`
	Token   string `yaml:"token" toml:"token"`
	APIURL  string `yaml:"api_url" toml:"api_url"`
	// RequestsPerSecond throttles page fetches; 0 disables throttling
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // json, text, or color
}

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// Requirement selects which settings a command needs
type Requirement int

const (
	// RequireAll validates everything, for commands that call the API
	RequireAll Requirement = iota
	// RequireLocal validates only database and logging settings, for
	// commands that touch nothing but the local database
	RequireLocal
)

// Load builds the configuration from the process environment.
func Load(req Requirement) (*Config, error) {
	return LoadFrom(os.Getenv(ConfigEnvVar), os.LookupEnv, req)
}

// LoadFrom builds the configuration from an optional file and an environment.
// Precedence: environment, then file, then defaults. An empty path skips the file.
func LoadFrom(path string, lookup LookupFunc, req Requirement) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: DefaultDriver},
		GroupMe:  GroupMeConfig{APIURL: DefaultAPIURL},
		Logging:  LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}

	if path != "" {
		if err := loadFile(path, lookup, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	validate := cfg.Validate
	if req == RequireLocal {
		validate = cfg.ValidateLocal
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	abs, err := filepath.Abs(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	cfg.Database.Path = abs

	return cfg, nil
}

// loadFile decodes a TOML file (by .toml extension) or a YAML file into cfg,
// after expanding ${VAR} references.
func loadFile(path string, lookup LookupFunc, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data), lookup)

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		v, _ := lookup(varName)
		return v
	})
}

// applyEnv overwrites fields for every override variable that is set and non-empty
func applyEnv(cfg *Config, lookup LookupFunc) error {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvDatabase, &cfg.Database.Path},
		{EnvDatabaseDriver, &cfg.Database.Driver},
		{EnvGroupID, &cfg.GroupMe.GroupID},
		{EnvToken, &cfg.GroupMe.Token},
		{EnvAPIURL, &cfg.GroupMe.APIURL},
		{EnvLogLevel, &cfg.Logging.Level},
		{EnvLogFormat, &cfg.Logging.Format},
	}

	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.target = v
		}
	}

	if v, ok := lookup(EnvAPIRate); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvAPIRate, err)
		}
		cfg.GroupMe.RequestsPerSecond = rps
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}
	return c.ValidateRemote()
}

// ValidateLocal checks the database and logging settings.
func (c *Config) ValidateLocal() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required (set %s)", EnvDatabase)
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// ValidateRemote checks the group, token, and API settings.
func (c *Config) ValidateRemote() error {
	if c.GroupMe.GroupID == "" {
		return fmt.Errorf("group id is required (set %s)", EnvGroupID)
	}
	if _, err := strconv.ParseUint(c.GroupMe.GroupID, 10, 64); err != nil {
		return fmt.Errorf("group id %q must be numeric", c.GroupMe.GroupID)
	}

	if c.GroupMe.Token == "" {
		return fmt.Errorf("token is required (set %s)", EnvToken)
	}

	u, err := url.Parse(c.GroupMe.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url must be http or https, got %q", c.GroupMe.APIURL)
	}

	if c.GroupMe.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got %v", c.GroupMe.RequestsPerSecond)
	}

	return nil
}

// SlogLevel converts the configured level name to a slog.Level
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
