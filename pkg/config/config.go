// Package config provides configuration management for the portalfetch client.
// It handles loading and validating application settings from YAML files and
// provides sensible defaults. Every setting can be overridden on the command
// line; the file only supplies defaults.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/portalfetch/pkg/errors"
	"github.com/glorpus-work/portalfetch/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Destination directory for downloaded files.
	Destination string `yaml:"destination,omitempty"`

	// EndpointPriority is a comma-separated, descending list of protocol
	// schemes (http, ftp, s3, fasp). Empty means "derive from environment".
	EndpointPriority string `yaml:"endpoint_priority,omitempty"`

	// BlockSize is the transfer chunk size in bytes.
	BlockSize int `yaml:"block_size,omitempty"`

	// Retries is the number of whole-batch retry passes after failures.
	Retries int `yaml:"retries,omitempty"`

	// FTPUser is the login name presented to FTP servers.
	FTPUser string `yaml:"ftp_user,omitempty"`

	// AsperaUser is the login name for fasp (Aspera) endpoints.
	AsperaUser string `yaml:"aspera_user,omitempty"`

	// Network settings
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Output settings
	LogLevel string `yaml:"log_level"` // error, warn, info, debug
}

// Default configuration values.
const (
	// DefaultBlockSize is the default transfer chunk size in bytes.
	DefaultBlockSize = 100000

	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultFTPUser is the anonymous-style login used for FTP endpoints.
	DefaultFTPUser = "portal_client"
)

// ValidSchemes lists the protocol tokens accepted in an endpoint priority.
var ValidSchemes = []string{"http", "ftp", "s3", "fasp"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			Destination: ".",
			BlockSize:   DefaultBlockSize,
			FTPUser:     DefaultFTPUser,
			HTTPTimeout: DefaultHTTPTimeout,
			LogLevel:    "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// default configuration rather than an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "invalid config file path")
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return &config, nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "invalid config file path")
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeSecure); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := os.WriteFile(absPath, data, fsutil.FileModeSecure); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}

	return filepath.Join(configDir, "portalfetch", "config.yaml"), nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Settings.BlockSize <= 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "block size must be positive, got %d", c.Settings.BlockSize)
	}
	if c.Settings.EndpointPriority != "" {
		if err := ValidatePriority(c.Settings.EndpointPriority); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePriority checks that every token in a comma-separated priority list
// names a known protocol scheme. Tokens are case-insensitive.
func ValidatePriority(priority string) error {
	for _, token := range strings.Split(priority, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if !isValidScheme(token) {
			return errors.Wrapf(errors.ErrInvalidPriority, "unknown scheme %q", token)
		}
	}
	return nil
}

func isValidScheme(token string) bool {
	for _, s := range ValidSchemes {
		if token == s {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Settings.Destination == "" {
		c.Settings.Destination = defaults.Settings.Destination
	}
	if c.Settings.BlockSize == 0 {
		c.Settings.BlockSize = defaults.Settings.BlockSize
	}
	if c.Settings.FTPUser == "" {
		c.Settings.FTPUser = defaults.Settings.FTPUser
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}
