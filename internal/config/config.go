// Package config provides configuration management for ck using Viper.
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/provider"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// EnvPrefix is the prefix of environment variables read by ck.
const EnvPrefix = "CK"

// configDirEnv overrides the user config directory searched by Init.
const configDirEnv = "CK_CONFIG_DIR"

// Conflict policy names.
const (
	PolicySkip      = "skip"
	PolicyBackup    = "backup"
	PolicyOverwrite = "overwrite"
	PolicyPrompt    = "prompt"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version          int                         `mapstructure:"version" yaml:"version"`
	DefaultProviders []string                    `mapstructure:"default_providers" yaml:"default_providers"`
	Concurrency      int                         `mapstructure:"concurrency" yaml:"concurrency"`
	Retry            RetryConfig                 `mapstructure:"retry" yaml:"retry"`
	Conflicts        ConflictConfig              `mapstructure:"conflicts" yaml:"conflicts"`
	Backup           BackupConfig                `mapstructure:"backup" yaml:"backup"`
	Kit              KitConfig                   `mapstructure:"kit" yaml:"kit"`
	Providers        map[string]ProviderOverride `mapstructure:"providers" yaml:"providers,omitempty"`
}

// RetryConfig bounds retries of transient filesystem errors.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts" yaml:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

// ConflictConfig selects how conflicts are resolved when no flag is given.
type ConflictConfig struct {
	Modified  string `mapstructure:"modified" yaml:"modified"`
	Untracked string `mapstructure:"untracked" yaml:"untracked"`
}

// BackupConfig configures backup sessions.
type BackupConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir,omitempty"`
	Retention int    `mapstructure:"retention" yaml:"retention"`
}

// KitConfig configures kit scanning.
type KitConfig struct {
	Ignore []string `mapstructure:"ignore" yaml:"ignore,omitempty"`
}

// ProviderOverride replaces a provider's base directories.
type ProviderOverride struct {
	ProjectDir string `mapstructure:"project_dir" yaml:"project_dir,omitempty"`
	GlobalDir  string `mapstructure:"global_dir" yaml:"global_dir,omitempty"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.Reset()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	if dir := os.Getenv(configDirEnv); dir != "" {
		viper.AddConfigPath(dir)
	} else {
		viper.AddConfigPath(paths.ConfigDir())
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("default_providers", []string{"claude"})
	viper.SetDefault("concurrency", 0)
	viper.SetDefault("retry.attempts", fileutil.DefaultRetryPolicy.Attempts)
	viper.SetDefault("retry.base_delay", fileutil.DefaultRetryPolicy.BaseDelay)
	viper.SetDefault("conflicts.modified", PolicySkip)
	viper.SetDefault("conflicts.untracked", PolicySkip)
	viper.SetDefault("backup.dir", "")
	viper.SetDefault("backup.retention", 5)
	viper.SetDefault("kit.ignore", []string{})
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back to
// defaults when no file is found.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			return nil, errors.Wrapf(errors.ErrNotFound, "config file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "validating config")
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version:          1,
		DefaultProviders: []string{"claude"},
		Retry: RetryConfig{
			Attempts:  fileutil.DefaultRetryPolicy.Attempts,
			BaseDelay: fileutil.DefaultRetryPolicy.BaseDelay,
		},
		Conflicts: ConflictConfig{Modified: PolicySkip, Untracked: PolicySkip},
		Backup:    BackupConfig{Retention: 5},
	}
}

// Workers is the effective concurrency limit.
func (c *Config) Workers() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// RetryPolicy converts the retry settings to a fileutil policy.
func (c *Config) RetryPolicy() fileutil.RetryPolicy {
	p := fileutil.DefaultRetryPolicy
	if c.Retry.Attempts > 0 {
		p.Attempts = c.Retry.Attempts
	}
	if c.Retry.BaseDelay > 0 {
		p.BaseDelay = c.Retry.BaseDelay
	}
	return p
}

// BackupDir is the configured backup root with ~ expanded, or the default.
func (c *Config) BackupDir() (string, error) {
	if c.Backup.Dir == "" {
		return paths.BackupsDir(), nil
	}
	return paths.Expand(c.Backup.Dir)
}

// Catalog returns the built-in provider catalog with configured overrides.
func (c *Config) Catalog() (*provider.Catalog, error) {
	if len(c.Providers) == 0 {
		return provider.Default(), nil
	}
	overrides := make(map[string]provider.Override, len(c.Providers))
	for name, o := range c.Providers {
		overrides[name] = provider.Override{ProjectDir: o.ProjectDir, GlobalDir: o.GlobalDir}
	}
	return provider.Default().WithOverrides(overrides)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	return data, nil
}
