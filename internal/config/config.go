package config

import (
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Config holds all application configuration.
type Config struct {
	// Copy behavior
	Transfer TransferConfig `json:"transfer" yaml:"transfer" mapstructure:"transfer"`

	// Run history
	State StateConfig `json:"state" yaml:"state" mapstructure:"state"`

	// Logging
	Log LogConfig `json:"log" yaml:"log" mapstructure:"log"`
}

// TransferConfig tunes how files are moved.
type TransferConfig struct {
	BulkThreshold    int64    `json:"bulk_threshold" yaml:"bulk_threshold" mapstructure:"bulk_threshold"`             // Plain copies above this use the kernel copy path
	BulkExtent       int64    `json:"bulk_extent" yaml:"bulk_extent" mapstructure:"bulk_extent"`                      // Bytes per kernel copy call
	MaxRetries       int      `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`                      // Retry decisions honored per entry
	ShortNameLength  int      `json:"short_name_length" yaml:"short_name_length" mapstructure:"short_name_length"`    // Characters kept from the name HMAC
	MappingFile      string   `json:"mapping_file" yaml:"mapping_file" mapstructure:"mapping_file"`                   // Sidecar file name
	MappingCacheSize int      `json:"mapping_cache_size" yaml:"mapping_cache_size" mapstructure:"mapping_cache_size"` // Parents kept in memory
	Exclude          []string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`                                  // Patterns always skipped
}

// StateConfig selects where run records go.
type StateConfig struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"` // json, sqlite
	Dir     string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" mapstructure:"format"` // text, json
	File   string `json:"file" yaml:"file" mapstructure:"file"`       // Log file path (empty = stderr)
	Color  bool   `json:"color" yaml:"color" mapstructure:"color"`    // Enable colored output
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".vaultcopy"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".vaultcopy")
	}

	return &Config{
		Transfer: TransferConfig{
			BulkThreshold:    10 * 1024 * 1024, // 10MB
			BulkExtent:       8 * 1024 * 1024,
			MaxRetries:       16,
			ShortNameLength:  models.DefaultShortNameLength,
			MappingFile:      ".dirnames.map",
			MappingCacheSize: 128,
		},
		State: StateConfig{
			Backend: "json",
			Dir:     filepath.Join(dataDir, "state"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Transfer.BulkThreshold < 0 {
		return errors.Errorf("%w: transfer.bulk_threshold must not be negative", models.ErrInvalidConfig)
	}

	if c.Transfer.BulkExtent <= 0 {
		return errors.Errorf("%w: transfer.bulk_extent must be positive", models.ErrInvalidConfig)
	}

	if c.Transfer.MaxRetries < 0 {
		return errors.Errorf("%w: transfer.max_retries must not be negative", models.ErrInvalidConfig)
	}

	if n := c.Transfer.ShortNameLength; n < 4 || n > models.MaxShortNameLength {
		return errors.Errorf("%w: transfer.short_name_length must be between 4 and %d", models.ErrInvalidConfig, models.MaxShortNameLength)
	}

	if c.Transfer.MappingFile == "" || filepath.Base(c.Transfer.MappingFile) != c.Transfer.MappingFile {
		return errors.Errorf("%w: transfer.mapping_file must be a plain file name", models.ErrInvalidConfig)
	}

	if c.Transfer.MappingCacheSize <= 0 {
		return errors.Errorf("%w: transfer.mapping_cache_size must be positive", models.ErrInvalidConfig)
	}

	validBackends := map[string]bool{"json": true, "sqlite": true}
	if !validBackends[c.State.Backend] {
		return errors.Errorf("%w: invalid state backend: %s", models.ErrInvalidConfig, c.State.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return errors.Errorf("%w: invalid log level: %s", models.ErrInvalidConfig, c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return errors.Errorf("%w: invalid log format: %s", models.ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.State.Dir}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
