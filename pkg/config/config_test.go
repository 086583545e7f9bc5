package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, ".", cfg.Settings.Destination)
	assert.Equal(t, DefaultBlockSize, cfg.Settings.BlockSize)
	assert.Equal(t, DefaultFTPUser, cfg.Settings.FTPUser)
	assert.Equal(t, 30*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Empty(t, cfg.Settings.EndpointPriority)
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "full config",
			content: `settings:
  destination: /data/downloads
  endpoint_priority: "ftp,http"
  block_size: 8192
  retries: 2
  log_level: debug
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/data/downloads", cfg.Settings.Destination)
				assert.Equal(t, "ftp,http", cfg.Settings.EndpointPriority)
				assert.Equal(t, 8192, cfg.Settings.BlockSize)
				assert.Equal(t, 2, cfg.Settings.Retries)
				assert.Equal(t, "debug", cfg.Settings.LogLevel)
			},
		},
		{
			name:    "partial config gets defaults",
			content: "settings:\n  destination: /tmp\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp", cfg.Settings.Destination)
				assert.Equal(t, DefaultBlockSize, cfg.Settings.BlockSize)
				assert.Equal(t, DefaultFTPUser, cfg.Settings.FTPUser)
			},
		},
		{
			name:    "invalid yaml",
			content: "settings: [not a mapping",
			wantErr: true,
		},
		{
			name:    "negative block size",
			content: "settings:\n  block_size: -5\n",
			wantErr: true,
		},
		{
			name:    "unknown priority scheme",
			content: "settings:\n  endpoint_priority: \"gopher,http\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := LoadConfig(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Settings.Destination = "/data"
	cfg.Settings.EndpointPriority = "s3,http,ftp"
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Settings, loaded.Settings)
}

func TestValidatePriority(t *testing.T) {
	tests := []struct {
		priority string
		wantErr  bool
	}{
		{priority: "http"},
		{priority: "HTTP,FTP"},
		{priority: " s3 , fasp "},
		{priority: "gs", wantErr: true},
		{priority: "http,,ftp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			err := ValidatePriority(tt.priority)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), "invalid endpoint priority"))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
