// Package config loads beads-ui server configuration from config.yaml,
// environment variables (BD_UI_*) and flag overrides, in viper precedence
// order: explicit Set > env > config file > default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved beads-ui configuration.
type Config struct {
	// Listen is the HTTP listen address, loopback by default.
	Listen string `mapstructure:"listen"`

	// Workspace is the bd project root (the directory containing .beads).
	Workspace string `mapstructure:"workspace"`

	// BDPath and GTPath are the external binaries the dashboard drives.
	BDPath string `mapstructure:"bd-path"`
	GTPath string `mapstructure:"gt-path"`

	Supervisor SupervisorConfig `mapstructure:"supervisor"`
}

// SupervisorConfig holds the process supervisor tunables.
type SupervisorConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxConcurrent       int           `mapstructure:"max-concurrent"`
	BreakerThreshold    int           `mapstructure:"breaker-threshold"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker-reset-timeout"`
	KillGrace           time.Duration `mapstructure:"kill-grace"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:    "127.0.0.1:7781",
		Workspace: ".",
		BDPath:    "bd",
		GTPath:    "gt",
		Supervisor: SupervisorConfig{
			Timeout:             30 * time.Second,
			MaxConcurrent:       4,
			BreakerThreshold:    5,
			BreakerResetTimeout: 30 * time.Second,
			KillGrace:           2 * time.Second,
		},
	}
}

// Load resolves configuration from the given file path (or the default
// search locations when path is empty), the BD_UI_* environment and
// built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := Defaults()
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("workspace", defaults.Workspace)
	v.SetDefault("bd-path", defaults.BDPath)
	v.SetDefault("gt-path", defaults.GTPath)
	v.SetDefault("supervisor.timeout", defaults.Supervisor.Timeout)
	v.SetDefault("supervisor.max-concurrent", defaults.Supervisor.MaxConcurrent)
	v.SetDefault("supervisor.breaker-threshold", defaults.Supervisor.BreakerThreshold)
	v.SetDefault("supervisor.breaker-reset-timeout", defaults.Supervisor.BreakerResetTimeout)
	v.SetDefault("supervisor.kill-grace", defaults.Supervisor.KillGrace)

	v.SetEnvPrefix("BD_UI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
		// Missing config file is fine; defaults + env apply.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.BDPath == "" {
		return fmt.Errorf("bd-path must not be empty")
	}
	if c.Supervisor.MaxConcurrent < 0 {
		return fmt.Errorf("supervisor.max-concurrent must not be negative")
	}
	if c.Supervisor.Timeout < 0 {
		return fmt.Errorf("supervisor.timeout must not be negative")
	}
	if c.Supervisor.BreakerThreshold < 0 {
		return fmt.Errorf("supervisor.breaker-threshold must not be negative")
	}
	return nil
}

// BeadsDir returns the workspace's .beads directory.
func (c Config) BeadsDir() string {
	return filepath.Join(c.Workspace, ".beads")
}

// searchDirs lists the default config locations: ./.beads-ui, then
// ~/.beads-ui.
func searchDirs() []string {
	dirs := []string{".beads-ui"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".beads-ui"))
	}
	return dirs
}
