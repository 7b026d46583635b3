package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// HTTPConfig configures the catalog client.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	PageSize  int           `mapstructure:"page_size"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LocaleConfig selects the display-name language chain.
type LocaleConfig struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

// ResourceConfig holds per-resource settings.
type ResourceConfig struct {
	Workers int `mapstructure:"workers"`
}

// HistoryConfig configures the sync run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	BaseURL   string         `mapstructure:"base_url"`
	DataDir   string         `mapstructure:"data_dir"`
	HTTP      HTTPConfig     `mapstructure:"http"`
	Locale    LocaleConfig   `mapstructure:"locale"`
	Abilities ResourceConfig `mapstructure:"abilities"`
	Species   ResourceConfig `mapstructure:"species"`
	Moves     ResourceConfig `mapstructure:"moves"`
	History   HistoryConfig  `mapstructure:"history"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// Workers returns the fetch pool width configured for a resource.
// Unknown resources and non-positive values fall back to DefaultWorkers.
func (c *Config) Workers(resource string) int {
	var n int
	switch resource {
	case "abilities":
		n = c.Abilities.Workers
	case "species":
		n = c.Species.Workers
	case "moves":
		n = c.Moves.Workers
	}
	if n < 1 {
		return DefaultWorkers
	}
	return n
}

// SetDefaults registers every default on v. Shared by Load and the CLI's
// global viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("data_dir", DefaultDataDir)

	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.rate_limit", DefaultRateLimit)
	v.SetDefault("http.page_size", DefaultPageSize)
	v.SetDefault("http.user_agent", DefaultUserAgent)

	v.SetDefault("locale.primary", DefaultPrimaryLocale)
	v.SetDefault("locale.secondary", DefaultSecondaryLocale)

	for _, name := range Resources {
		v.SetDefault(name+".workers", DefaultWorkers)
	}

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath
	v.SetDefault("logging.console", "info")
	v.SetDefault("logging.components", map[string]string{
		"sync":    "info",
		"catalog": "info",
		"pool":    "info",
		"store":   "info",
	})
}

// Load loads configuration from file and environment variables.
// An explicit path wins; otherwise the file is looked up in:
//   - $XDG_CONFIG_HOME/dexsync/config.yaml
//   - $HOME/.config/dexsync/config.yaml
//
// Environment variables are prefixed with DEXSYNC_ (e.g., DEXSYNC_MOVES_WORKERS).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	Bind(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Decode(v)
}

// Bind applies the env prefix and defaults to v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix("DEXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Decode unmarshals v into a Config and normalizes paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.DataDir, err = ExpandPath(cfg.DataDir); err != nil {
		return nil, err
	}
	if cfg.History.Path, err = ExpandPath(cfg.History.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values the sync cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url cannot be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative: %s", c.HTTP.Timeout)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative: %v", c.HTTP.RateLimit)
	}
	return nil
}

// ConfigDir returns the configuration directory, honoring XDG_CONFIG_HOME.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "dexsync"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dexsync"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryPath returns $XDG_DATA_HOME/dexsync/history.
func DefaultHistoryPath() string {
	return filepath.Join(xdg.DataHome, "dexsync", "history")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file at path unless one
// already exists. It reports whether a file was created.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# dexsync configuration

# Catalog API root
base_url: %s

# Directory holding <resource>/manifest.json and dated snapshot files
data_dir: %s

http:
  timeout: %s
  # Requests per second across all workers (0 disables pacing)
  rate_limit: %v
  page_size: %d
  user_agent: %s

# Display-name language chain: primary, then secondary, then the raw key
locale:
  primary: %s
  secondary: %s

# Fetch pool width per resource
abilities:
  workers: %d
species:
  workers: %d
moves:
  workers: %d

history:
  enabled: true
  path: %s
  retention_days: %d

logging:
  # Log level for the log file: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/dexsync/dexsync.log)
  path: ""
  # Console (stderr) level; empty disables console logging
  console: info
  components:
    sync: info
    catalog: info
    pool: info
    store: info
`, DefaultBaseURL, DefaultDataDir, DefaultTimeout, DefaultRateLimit, DefaultPageSize, DefaultUserAgent,
		DefaultPrimaryLocale, DefaultSecondaryLocale, DefaultWorkers, DefaultWorkers, DefaultWorkers,
		DefaultHistoryPath(), DefaultRetentionDays)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}
