package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, for example
// VAULTCOPY_LOG_LEVEL or VAULTCOPY_TRANSFER_MAX_RETRIES.
const EnvPrefix = "VAULTCOPY"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty path searches the default
// locations and tolerates finding nothing.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Load reads configuration from defaults, file and environment, in that
// order of precedence.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
	} else {
		v.SetConfigName("vaultcopy")
		for _, dir := range defaultDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configPath != "" || !errors.As(err, &notFound) {
			return nil, errors.Errorf("load config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the file that was read, if any.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// defaultDirs returns the directories searched for vaultcopy.{yaml,json,toml}.
func defaultDirs() []string {
	dirs := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "vaultcopy"),
			filepath.Join(homeDir, ".vaultcopy"),
		)
	}

	return dirs
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("transfer.bulk_threshold", cfg.Transfer.BulkThreshold)
	v.SetDefault("transfer.bulk_extent", cfg.Transfer.BulkExtent)
	v.SetDefault("transfer.max_retries", cfg.Transfer.MaxRetries)
	v.SetDefault("transfer.short_name_length", cfg.Transfer.ShortNameLength)
	v.SetDefault("transfer.mapping_file", cfg.Transfer.MappingFile)
	v.SetDefault("transfer.mapping_cache_size", cfg.Transfer.MappingCacheSize)
	v.SetDefault("transfer.exclude", cfg.Transfer.Exclude)

	v.SetDefault("state.backend", cfg.State.Backend)
	v.SetDefault("state.dir", cfg.State.Dir)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.color", cfg.Log.Color)
}

const exampleHeader = `# vaultcopy configuration file
# Environment variables override these settings using the VAULTCOPY_ prefix,
# for example: VAULTCOPY_LOG_LEVEL=debug
`

// SaveExample writes an example config file.
func SaveExample(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return errors.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(exampleHeader), data...), 0600); err != nil {
		return errors.Errorf("write file: %w", err)
	}

	return nil
}
