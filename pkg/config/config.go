package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.sagekit/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8460
// assistant:
//   host_url: ws://127.0.0.1:8710/bridge
//   page_size: 20
//   poll_initial_interval_ms: 2000
//   poll_max_interval_ms: 60000
//   poll_backoff_factor: 1.1
//   poll_staleness_ceiling_ms: 1200000
//   identity_settle_delay_ms: 400
//   min_page_latency_ms: 300
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

// AssistantConfig tunes the conversation synchronization engine.
type AssistantConfig struct {
	HostURL *string `yaml:"host_url"`

	PageSize *int `yaml:"page_size"`

	PollInitialIntervalMS  *int64   `yaml:"poll_initial_interval_ms"`
	PollMaxIntervalMS      *int64   `yaml:"poll_max_interval_ms"`
	PollBackoffFactor      *float64 `yaml:"poll_backoff_factor"`
	PollStalenessCeilingMS *int64   `yaml:"poll_staleness_ceiling_ms"`

	// IdentitySettleDelayMS is how long to wait after an IdentityChanged event
	// before re-reading identity from the host. The host settles its own state
	// asynchronously; reacting immediately can observe the old identity.
	IdentitySettleDelayMS *int64 `yaml:"identity_settle_delay_ms"`

	// MinPageLatencyMS is the minimum visible duration of a backward-pagination
	// load, so rapid scrolling does not flicker.
	MinPageLatencyMS *int64 `yaml:"min_page_latency_ms"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8460

	DefaultHostURL = "ws://127.0.0.1:8710/bridge"

	DefaultPageSize = 20

	DefaultPollInitialInterval  = 2 * time.Second
	DefaultPollMaxInterval      = 60 * time.Second
	DefaultPollBackoffFactor    = 1.1
	DefaultPollStalenessCeiling = 20 * time.Minute

	DefaultIdentitySettleDelay = 400 * time.Millisecond
	DefaultMinPageLatency      = 300 * time.Millisecond
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".sagekit")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.sagekit/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if f := cfg.PollBackoffFactor(); f < 1.0 {
		return nil, "", fmt.Errorf("invalid assistant.poll_backoff_factor %v in %s", f, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) HostURL() string {
	if c == nil || c.Assistant.HostURL == nil {
		return DefaultHostURL
	}
	v := strings.TrimSpace(*c.Assistant.HostURL)
	if v == "" {
		return DefaultHostURL
	}
	return v
}

func (c *AppConfig) PageSize() int {
	if c == nil || c.Assistant.PageSize == nil || *c.Assistant.PageSize < 1 {
		return DefaultPageSize
	}
	return *c.Assistant.PageSize
}

func (c *AppConfig) PollInitialInterval() time.Duration {
	if c == nil {
		return DefaultPollInitialInterval
	}
	return msDuration(c.Assistant.PollInitialIntervalMS, DefaultPollInitialInterval)
}

func (c *AppConfig) PollMaxInterval() time.Duration {
	if c == nil {
		return DefaultPollMaxInterval
	}
	return msDuration(c.Assistant.PollMaxIntervalMS, DefaultPollMaxInterval)
}

func (c *AppConfig) PollBackoffFactor() float64 {
	if c == nil || c.Assistant.PollBackoffFactor == nil {
		return DefaultPollBackoffFactor
	}
	return *c.Assistant.PollBackoffFactor
}

func (c *AppConfig) PollStalenessCeiling() time.Duration {
	if c == nil {
		return DefaultPollStalenessCeiling
	}
	return msDuration(c.Assistant.PollStalenessCeilingMS, DefaultPollStalenessCeiling)
}

func (c *AppConfig) IdentitySettleDelay() time.Duration {
	if c == nil {
		return DefaultIdentitySettleDelay
	}
	return msDuration(c.Assistant.IdentitySettleDelayMS, DefaultIdentitySettleDelay)
}

func (c *AppConfig) MinPageLatency() time.Duration {
	if c == nil {
		return DefaultMinPageLatency
	}
	return msDuration(c.Assistant.MinPageLatencyMS, DefaultMinPageLatency)
}

func msDuration(ms *int64, def time.Duration) time.Duration {
	if ms == nil || *ms < 0 {
		return def
	}
	return time.Duration(*ms) * time.Millisecond
}

func ptr[T any](v T) *T { return &v }
