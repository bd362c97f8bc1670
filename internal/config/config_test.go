package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.MaxConcurrent != 3 || cfg.PollInterval != time.Second || cfg.ErrorBackoff != 5*time.Second {
		t.Errorf("unexpected scheduler defaults: %+v", cfg)
	}
	if cfg.Quantum != 10 {
		t.Errorf("Quantum = %d, want 10", cfg.Quantum)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gosched.yaml")
	data := `
addr: ":9090"
log_level: debug
max_concurrent: 5
poll_interval: 250ms
quantum: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOSCHED_MAX_CONCURRENT", "7")
	t.Setenv("GOSCHED_TIME_UNIT", "10ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.LogLevel != "debug" || cfg.Quantum != 4 {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want env override 7", cfg.MaxConcurrent)
	}
	if cfg.TimeUnit != 10*time.Millisecond {
		t.Errorf("TimeUnit = %v, want 10ms", cfg.TimeUnit)
	}
	// Untouched fields keep their defaults.
	if cfg.ErrorBackoff != 5*time.Second || cfg.LogFormat != "text" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultServerConfig().Addr {
		t.Errorf("Addr = %q", cfg.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("max_concurrent: [1, 2"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}

	t.Setenv("GOSCHED_MAX_CONCURRENT", "many")
	if _, err := Load(""); err == nil {
		t.Error("expected error for malformed env value")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"empty addr", func(c *ServerConfig) { c.Addr = "" }, "addr"},
		{"bad level", func(c *ServerConfig) { c.LogLevel = "loud" }, "log level"},
		{"bad format", func(c *ServerConfig) { c.LogFormat = "xml" }, "log_format"},
		{"zero ceiling", func(c *ServerConfig) { c.MaxConcurrent = 0 }, "max_concurrent"},
		{"zero poll", func(c *ServerConfig) { c.PollInterval = 0 }, "poll_interval"},
		{"zero backoff", func(c *ServerConfig) { c.ErrorBackoff = 0 }, "error_backoff"},
		{"zero quantum", func(c *ServerConfig) { c.Quantum = 0 }, "quantum"},
		{"zero time unit", func(c *ServerConfig) { c.TimeUnit = 0 }, "time_unit"},
		{"negative rate", func(c *ServerConfig) { c.RateLimit = -1 }, "rate_limit"},
		{"no burst", func(c *ServerConfig) { c.RateBurst = 0 }, "rate_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := DefaultServerConfig()
	cfg.RateLimit = 0
	cfg.RateBurst = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("rate limiting disabled should be valid: %v", err)
	}

	cfg = DefaultServerConfig()
	cfg.DBPath = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty db_path selects the home directory default: %v", err)
	}
}
