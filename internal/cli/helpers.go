package cli

import (
	"fmt"

	"github.com/glorpus-work/portalfetch/pkg/config"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

// Width of tab-separated output columns.
const TabWidth = 4

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}
	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		return ""
	}
	return defaultPath
}

// loadConfig loads the configuration file and applies global CLI flag
// overrides. A missing file yields the defaults.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if path == "" {
		return nil, fmt.Errorf("cannot determine config file path")
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}

	return cfg, nil
}
