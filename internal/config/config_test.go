package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CODEGATE_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.AgentBinary != "agent" {
		t.Errorf("AgentBinary = %q, want agent", cfg.AgentBinary)
	}
	if cfg.Model != "coder-1" {
		t.Errorf("Model = %q, want coder-1", cfg.Model)
	}
	if cfg.DefaultTimeout != 0 {
		t.Errorf("DefaultTimeout = %v, want 0 (unbounded)", cfg.DefaultTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CODEGATE_CONFIG", "")
	t.Setenv("CODEGATE_MODEL", "coder-2")
	t.Setenv("CODEGATE_LISTEN_ADDR", ":9090")
	t.Setenv("CODEGATE_AGENT_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model != "coder-2" {
		t.Errorf("Model = %q, want coder-2", cfg.Model)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.AgentAPIKey != "sk-test" {
		t.Errorf("AgentAPIKey = %q, want sk-test", cfg.AgentAPIKey)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codegate.yaml")
	content := "model: coder-file\ndefault_timeout: 5m\nallowed_origins:\n  - https://example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("CODEGATE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model != "coder-file" {
		t.Errorf("Model = %q, want coder-file", cfg.Model)
	}
	if cfg.DefaultTimeout != 5*time.Minute {
		t.Errorf("DefaultTimeout = %v, want 5m", cfg.DefaultTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty binary", func(c *Config) { c.AgentBinary = " " }, true},
		{"empty model", func(c *Config) { c.Model = "" }, true},
		{"negative timeout", func(c *Config) { c.DefaultTimeout = -time.Second }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{AgentBinary: "agent", Model: "coder-1"}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
