package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7781" {
		t.Errorf("listen = %q, want default", cfg.Listen)
	}
	if cfg.BDPath != "bd" || cfg.GTPath != "gt" {
		t.Errorf("binary paths = %q/%q, want bd/gt", cfg.BDPath, cfg.GTPath)
	}
	if cfg.Supervisor.MaxConcurrent != 4 {
		t.Errorf("max-concurrent = %d, want 4", cfg.Supervisor.MaxConcurrent)
	}
	if cfg.Supervisor.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Supervisor.Timeout)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: "0.0.0.0:9000"
bd-path: /usr/local/bin/bd
supervisor:
  timeout: 5s
  max-concurrent: 2
  breaker-threshold: 3
  breaker-reset-timeout: 1m
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.BDPath != "/usr/local/bin/bd" {
		t.Errorf("bd-path = %q", cfg.BDPath)
	}
	if cfg.Supervisor.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Supervisor.Timeout)
	}
	if cfg.Supervisor.MaxConcurrent != 2 {
		t.Errorf("max-concurrent = %d, want 2", cfg.Supervisor.MaxConcurrent)
	}
	if cfg.Supervisor.BreakerResetTimeout != time.Minute {
		t.Errorf("breaker-reset-timeout = %v, want 1m", cfg.Supervisor.BreakerResetTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BD_UI_LISTEN", "127.0.0.1:8888")
	t.Setenv("BD_UI_SUPERVISOR_MAX_CONCURRENT", "9")

	cfg, err := Load(writeConfig(t, "listen: 127.0.0.1:1111\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Env beats file.
	if cfg.Listen != "127.0.0.1:8888" {
		t.Errorf("listen = %q, want env override", cfg.Listen)
	}
	if cfg.Supervisor.MaxConcurrent != 9 {
		t.Errorf("max-concurrent = %d, want 9", cfg.Supervisor.MaxConcurrent)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != Defaults().Listen {
		t.Errorf("listen = %q, want default", cfg.Listen)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty bd-path", func(c *Config) { c.BDPath = "" }},
		{"negative max-concurrent", func(c *Config) { c.Supervisor.MaxConcurrent = -1 }},
		{"negative timeout", func(c *Config) { c.Supervisor.Timeout = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBeadsDir(t *testing.T) {
	cfg := Defaults()
	cfg.Workspace = "/srv/project"
	if got := cfg.BeadsDir(); got != filepath.Join("/srv/project", ".beads") {
		t.Errorf("BeadsDir = %q", got)
	}
}
