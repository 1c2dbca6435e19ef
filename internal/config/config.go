// Package config provides configuration management for the console client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds connection and behavior settings for the console client.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\irconsole\config
//   - Unix: ~/.config/irconsole/config
//
// INI format:
//
//	[console]
//	url = https://console.example.com
//	api_token = <token>
//
//	[console.tables]
//	page_size = 50
//	fetch_timeout_seconds = 60
//
//	[console.polling]
//	interval_seconds = 1
type Config struct {
	// Console connection settings
	URL      string `ini:"url"`
	APIToken string `ini:"api_token"`

	// Table engine settings
	Tables TablesConfig

	// Polling settings
	Polling PollingConfig
}

// TablesConfig contains settings for the table engines.
type TablesConfig struct {
	// PageSize is the number of items requested per fetch.
	// Minimum: 1, Default: 50
	PageSize int `ini:"page_size"`

	// FetchTimeoutSeconds bounds a single provider fetch. A fetch that
	// exceeds it is treated as a failed fetch.
	// Minimum: 1, Default: 60
	FetchTimeoutSeconds int `ini:"fetch_timeout_seconds"`
}

// PollingConfig contains settings for the request-polling primitive.
type PollingConfig struct {
	// IntervalSeconds is the delay between settled poll requests.
	// Minimum: 1, Default: 1
	IntervalSeconds int `ini:"interval_seconds"`
}

// Validation errors
var (
	ErrMissingURL          = errors.New("console URL is required")
	ErrMissingAPIToken     = errors.New("api_token is required")
	ErrInvalidPageSize     = errors.New("page_size must be at least 1")
	ErrInvalidFetchTimeout = errors.New("fetch_timeout_seconds must be at least 1")
	ErrInvalidPollInterval = errors.New("interval_seconds must be at least 1")
)

// DefaultConfigPath returns the default path for the config file.
// - Windows: %USERPROFILE%\.config\irconsole\config
// - Unix: ~/.config/irconsole/config
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "irconsole")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "irconsole")
	}

	return filepath.Join(configDir, "config"), nil
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Tables: TablesConfig{
			PageSize:            50,
			FetchTimeoutSeconds: 60,
		},
		Polling: PollingConfig{
			IntervalSeconds: 1,
		},
	}
}

// Load loads configuration from an INI file, then applies environment
// overrides (CONSOLE_URL, CONSOLE_API_TOKEN).
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		consoleSection := iniFile.Section("console")
		cfg.URL = consoleSection.Key("url").MustString(cfg.URL)
		cfg.APIToken = consoleSection.Key("api_token").String()

		tablesSection := iniFile.Section("console.tables")
		cfg.Tables.PageSize = tablesSection.Key("page_size").MustInt(cfg.Tables.PageSize)
		cfg.Tables.FetchTimeoutSeconds = tablesSection.Key("fetch_timeout_seconds").MustInt(cfg.Tables.FetchTimeoutSeconds)

		pollingSection := iniFile.Section("console.polling")
		cfg.Polling.IntervalSeconds = pollingSection.Key("interval_seconds").MustInt(cfg.Polling.IntervalSeconds)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONSOLE_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("CONSOLE_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrMissingURL
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return ErrMissingAPIToken
	}
	if c.Tables.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if c.Tables.FetchTimeoutSeconds < 1 {
		return ErrInvalidFetchTimeout
	}
	if c.Polling.IntervalSeconds < 1 {
		return ErrInvalidPollInterval
	}
	return nil
}

// FetchTimeout returns the fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Tables.FetchTimeoutSeconds) * time.Second
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// Save writes the configuration to an INI file, creating parent directories
// as needed. Used by `irconsole config set`.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	consoleSection := iniFile.Section("console")
	consoleSection.Key("url").SetValue(c.URL)
	consoleSection.Key("api_token").SetValue(c.APIToken)

	tablesSection := iniFile.Section("console.tables")
	tablesSection.Key("page_size").SetValue(fmt.Sprintf("%d", c.Tables.PageSize))
	tablesSection.Key("fetch_timeout_seconds").SetValue(fmt.Sprintf("%d", c.Tables.FetchTimeoutSeconds))

	pollingSection := iniFile.Section("console.polling")
	pollingSection.Key("interval_seconds").SetValue(fmt.Sprintf("%d", c.Polling.IntervalSeconds))

	if err := iniFile.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// Token file should not be world-readable.
	return os.Chmod(path, 0o600)
}
