package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/config"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, int64(10*1024*1024), cfg.Transfer.BulkThreshold)
	assert.Equal(t, 16, cfg.Transfer.MaxRetries)
	assert.Equal(t, 16, cfg.Transfer.ShortNameLength)
	assert.Equal(t, ".dirnames.map", cfg.Transfer.MappingFile)
	assert.Equal(t, "json", cfg.State.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name:    "valid config",
			modify:  func(c *config.Config) {},
			wantErr: "",
		},
		{
			name: "invalid log level",
			modify: func(c *config.Config) {
				c.Log.Level = "invalid"
			},
			wantErr: "invalid log level",
		},
		{
			name: "short name too short",
			modify: func(c *config.Config) {
				c.Transfer.ShortNameLength = 2
			},
			wantErr: "transfer.short_name_length",
		},
		{
			name: "mapping file with directory",
			modify: func(c *config.Config) {
				c.Transfer.MappingFile = "sub/.dirnames.map"
			},
			wantErr: "transfer.mapping_file",
		},
		{
			name: "unknown backend",
			modify: func(c *config.Config) {
				c.State.Backend = "redis"
			},
			wantErr: "invalid state backend",
		},
		{
			name: "negative retries",
			modify: func(c *config.Config) {
				c.Transfer.MaxRetries = -1
			},
			wantErr: "transfer.max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.ErrorIs(t, err, models.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderEnv(t *testing.T) {
	t.Setenv("VAULTCOPY_LOG_LEVEL", "DEBUG")
	t.Setenv("VAULTCOPY_TRANSFER_MAX_RETRIES", "3")
	t.Setenv("VAULTCOPY_TRANSFER_BULK_THRESHOLD", "1048576")
	t.Setenv("VAULTCOPY_STATE_BACKEND", "sqlite")

	path := filepath.Join(t.TempDir(), "vaultcopy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: json\n"), 0600))

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Transfer.MaxRetries)
	assert.Equal(t, int64(1048576), cfg.Transfer.BulkThreshold)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoaderFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vaultcopy.yaml")

	configYAML := `
transfer:
  max_retries: 5
  mapping_file: .name.meta.jpg
  exclude:
    - "**/.DS_Store"
log:
  level: warn
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0644))

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, configPath, loader.ConfigFile())
	assert.Equal(t, 5, cfg.Transfer.MaxRetries)
	assert.Equal(t, ".name.meta.jpg", cfg.Transfer.MappingFile)
	assert.Equal(t, []string{"**/.DS_Store"}, cfg.Transfer.Exclude)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 16, cfg.Transfer.ShortNameLength)
}

func TestLoaderMissingExplicitFile(t *testing.T) {
	loader := config.NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestSaveExampleLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultcopy.yaml")
	require.NoError(t, config.SaveExample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "VAULTCOPY_")

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)
	defaults := config.DefaultConfig()
	assert.Equal(t, defaults.Transfer.BulkThreshold, cfg.Transfer.BulkThreshold)
	assert.Equal(t, defaults.Transfer.MaxRetries, cfg.Transfer.MaxRetries)
	assert.Equal(t, defaults.Transfer.MappingFile, cfg.Transfer.MappingFile)
	assert.Equal(t, defaults.State, cfg.State)
	assert.Empty(t, cfg.Transfer.Exclude)
}

func TestConfigEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.State.Dir = filepath.Join(tmpDir, "data", "state")
	cfg.Log.File = filepath.Join(tmpDir, "logs", "app.log")

	require.NoError(t, cfg.EnsureDirectories())

	assert.DirExists(t, cfg.State.Dir)
	assert.DirExists(t, filepath.Dir(cfg.Log.File))
}
