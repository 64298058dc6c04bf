// Package config loads settings for the secretfs command line tool.
//
// Sources, highest precedence first:
//  1. Environment variables (SECRETFS_*)
//  2. Configuration file (YAML, TOML or JSON)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "SECRETFS"

// Config is the complete tool configuration
type Config struct {
	// Store selects the repository on disk
	Store StoreConfig `mapstructure:"store"`

	// KDF tunes password key derivation
	KDF KDFConfig `mapstructure:"kdf"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig locates the repository
type StoreConfig struct {
	// Path is the host directory holding the encrypted tree
	Path string `mapstructure:"path" validate:"required"`

	// KeyEnv names an environment variable holding a base64 raw key.
	// When set, the password prompt is skipped.
	KeyEnv string `mapstructure:"key_env"`
}

// KDFConfig tunes PBKDF2
type KDFConfig struct {
	// Iterations must match the value the repository was created with
	Iterations int `mapstructure:"iterations" validate:"gte=1"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn error disabled TRACE DEBUG INFO WARN ERROR DISABLED"`

	// Format is "json" or "console"
	Format string `mapstructure:"format" validate:"required,oneof=json console"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// Load reads configuration from configPath (optional), the environment and
// defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Example: SECRETFS_STORE_PATH=/home/me/.secrets
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.key_env", "")
	v.SetDefault("kdf.iterations", 600000)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// An explicitly requested file must exist
		if configPath != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/secretfs or ~/.config/secretfs
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "secretfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "secretfs")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".secretfs"
	}
	return filepath.Join(home, ".secretfs")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
