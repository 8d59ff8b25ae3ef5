package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile_ReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path == "" {
		t.Fatalf("expected config path")
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
	if got := cfg.PageSize(); got != DefaultPageSize {
		t.Fatalf("cfg.PageSize() = %d, want %d", got, DefaultPageSize)
	}
	if got := cfg.PollInitialInterval(); got != DefaultPollInitialInterval {
		t.Fatalf("cfg.PollInitialInterval() = %v, want %v", got, DefaultPollInitialInterval)
	}
	if got := cfg.IdentitySettleDelay(); got != DefaultIdentitySettleDelay {
		t.Fatalf("cfg.IdentitySettleDelay() = %v, want %v", got, DefaultIdentitySettleDelay)
	}
}

func TestEnsureDefaultConfig_CreatesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := EnsureDefaultConfig()
	if err != nil {
		t.Fatalf("EnsureDefaultConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist at %s: %v", path, err)
	}

	cfg, gotPath, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if filepath.Clean(gotPath) != filepath.Clean(path) {
		t.Fatalf("Load() path = %s, want %s", gotPath, path)
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
}

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	configDir := filepath.Join(home, ".sagekit")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad_ParsesHostAndPort(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, "server:\n  host: 0.0.0.0\n  port: 9090\n")

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Host(); got != "0.0.0.0" {
		t.Fatalf("cfg.Host() = %q, want %q", got, "0.0.0.0")
	}
	if got := cfg.Port(); got != 9090 {
		t.Fatalf("cfg.Port() = %d, want %d", got, 9090)
	}
}

func TestLoad_ParsesAssistantTunables(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `assistant:
  host_url: ws://127.0.0.1:9000/bridge
  page_size: 50
  poll_initial_interval_ms: 1000
  poll_max_interval_ms: 30000
  poll_backoff_factor: 1.5
  poll_staleness_ceiling_ms: 600000
  identity_settle_delay_ms: 250
  min_page_latency_ms: 0
`)

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.HostURL(); got != "ws://127.0.0.1:9000/bridge" {
		t.Fatalf("cfg.HostURL() = %q", got)
	}
	if got := cfg.PageSize(); got != 50 {
		t.Fatalf("cfg.PageSize() = %d, want 50", got)
	}
	if got := cfg.PollInitialInterval(); got != time.Second {
		t.Fatalf("cfg.PollInitialInterval() = %v, want 1s", got)
	}
	if got := cfg.PollMaxInterval(); got != 30*time.Second {
		t.Fatalf("cfg.PollMaxInterval() = %v, want 30s", got)
	}
	if got := cfg.PollBackoffFactor(); got != 1.5 {
		t.Fatalf("cfg.PollBackoffFactor() = %v, want 1.5", got)
	}
	if got := cfg.PollStalenessCeiling(); got != 10*time.Minute {
		t.Fatalf("cfg.PollStalenessCeiling() = %v, want 10m", got)
	}
	if got := cfg.IdentitySettleDelay(); got != 250*time.Millisecond {
		t.Fatalf("cfg.IdentitySettleDelay() = %v, want 250ms", got)
	}
	if got := cfg.MinPageLatency(); got != 0 {
		t.Fatalf("cfg.MinPageLatency() = %v, want 0", got)
	}
}

func TestLoad_RejectsBadBackoffFactor(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, "assistant:\n  poll_backoff_factor: 0.5\n")

	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for backoff factor < 1")
	}
}
