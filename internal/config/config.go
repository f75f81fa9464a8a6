// Package config loads and validates codegate configuration.
// Configuration is resolved once at startup into an immutable Config value
// that is passed into the components that need it; nothing reads process-wide
// state after startup, so executions stay independently testable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all codegate configuration.
type Config struct {
	// Server
	ListenAddr      string        `mapstructure:"listen_addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Agent subprocess
	AgentBinary      string        `mapstructure:"agent_binary"`
	AgentInstallPath string        `mapstructure:"agent_install_path"`
	Model            string        `mapstructure:"model"`
	AgentAPIKey      string        `mapstructure:"agent_api_key"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`

	// Workspaces
	WorkspaceRoot string `mapstructure:"workspace_root"`

	// History
	HistoryPath string `mapstructure:"history_path"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Metrics
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// Load reads configuration from an optional YAML file and CODEGATE_* env
// overrides. The file path comes from CODEGATE_CONFIG; if unset, a
// codegate.yaml in the working directory is used when present.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("CODEGATE_CONFIG")
	if path == "" {
		if _, err := os.Stat("codegate.yaml"); err == nil {
			path = "codegate.yaml"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	// Keys without a meaningful default still need one registered, or
	// AutomaticEnv will not surface their CODEGATE_* overrides.
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("agent_binary", "agent")
	v.SetDefault("agent_install_path", "/usr/local/bin/agent")
	v.SetDefault("model", "coder-1")
	v.SetDefault("agent_api_key", "")
	// 0 means no timeout: the agent runs until it exits or the caller
	// disconnects.
	v.SetDefault("default_timeout", time.Duration(0))
	v.SetDefault("workspace_root", filepath.Join(os.TempDir(), "codegate-workspaces"))
	v.SetDefault("history_path", defaultHistoryPath())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics_enabled", true)
}

// Validate checks that required fields are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AgentBinary) == "" {
		return fmt.Errorf("agent_binary must not be empty")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must not be negative")
	}
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "codegate-history.db"
	}
	return filepath.Join(home, ".codegate", "history.db")
}
