// Package config loads and validates the gateway configuration. The
// configuration lives in a TOML file; secrets (credential sealing key,
// Postgres DSN) may reference environment variables, with an optional .env
// file loaded before expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// SessionsConfig holds session lifecycle related configuration.
type SessionsConfig struct {
	Dir     string `toml:"dir"`     // directory for per-session state
	Restore bool   `toml:"restore"` // restart sessions with stored credentials on boot
}

// ProtocolConfig selects the messaging network driver.
type ProtocolConfig struct {
	Driver string `toml:"driver"` // protocol driver; "loopback" is the only built-in
}

// CredentialsConfig holds credential store related configuration.
type CredentialsConfig struct {
	Backend     string `toml:"backend"`      // "file" or "postgres"
	SealingKey  string `toml:"sealing_key"`  // hex key for at-rest sealing; empty disables
	PostgresDSN string `toml:"postgres_dsn"` // DSN for the postgres backend
}

// ReconnectConfig holds reconnect policy configuration.
type ReconnectConfig struct {
	Delay       string `toml:"delay"`        // delay between reconnect attempts
	Backoff     bool   `toml:"backoff"`      // grow the delay instead of keeping it fixed
	MaxDelay    string `toml:"max_delay"`    // cap for the grown delay
	MaxAttempts uint   `toml:"max_attempts"` // attempt cap when backoff is enabled; 0 = unbounded

	delay    time.Duration
	maxDelay time.Duration
}

// GetDelay returns the reconnect delay as a time.Duration.
func (r *ReconnectConfig) GetDelay() time.Duration {
	return r.delay
}

// GetMaxDelay returns the reconnect delay cap as a time.Duration.
func (r *ReconnectConfig) GetMaxDelay() time.Duration {
	return r.maxDelay
}

// WebhookConfig holds webhook dispatch configuration.
type WebhookConfig struct {
	Timeout    string `toml:"timeout"`     // per-POST timeout
	BufferSize int    `toml:"buffer_size"` // per-session event buffer

	timeout time.Duration
}

// GetTimeout returns the webhook POST timeout as a time.Duration.
func (w *WebhookConfig) GetTimeout() time.Duration {
	return w.timeout
}

// ConfigParam holds all configuration parameters for the gateway.
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName string `toml:"server_hostname"` // Hostname for the server
	ServerPort     string `toml:"server_port"`     // Port for the server
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS

	// Session configuration
	Sessions SessionsConfig `toml:"sessions"`

	// Protocol driver configuration
	Protocol ProtocolConfig `toml:"protocol"`

	// Credential store configuration
	Credentials CredentialsConfig `toml:"credentials"`

	// Reconnect policy configuration
	Reconnect ReconnectConfig `toml:"reconnect"`

	// Webhook dispatch configuration
	Webhook WebhookConfig `toml:"webhook"`
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// ConfigFormatVersion is the current version of the configuration file format.
const ConfigFormatVersion = "0.1.0"

// ValidateConfig checks required values, applies defaults, and resolves
// durations and environment references.
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}

	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}

	if cfg.Sessions.Dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting user home directory: %v", err)
		}
		cfg.Sessions.Dir = filepath.Join(homeDir, ".waygate", "sessions")
	}
	if err := os.MkdirAll(cfg.Sessions.Dir, 0700); err != nil {
		return fmt.Errorf("error creating sessions directory: %v", err)
	}

	if cfg.Protocol.Driver == "" {
		cfg.Protocol.Driver = "loopback"
	}

	switch cfg.Credentials.Backend {
	case "":
		cfg.Credentials.Backend = "file"
	case "file":
	case "postgres":
		if cfg.Credentials.PostgresDSN == "" {
			return fmt.Errorf("credentials.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend: %s", cfg.Credentials.Backend)
	}
	cfg.Credentials.SealingKey = os.ExpandEnv(cfg.Credentials.SealingKey)
	cfg.Credentials.PostgresDSN = os.ExpandEnv(cfg.Credentials.PostgresDSN)

	if cfg.Reconnect.Delay == "" {
		cfg.Reconnect.Delay = "3s"
	}
	d, err := time.ParseDuration(cfg.Reconnect.Delay)
	if err != nil {
		return fmt.Errorf("invalid reconnect.delay: %v", err)
	}
	cfg.Reconnect.delay = d

	if cfg.Reconnect.MaxDelay == "" {
		cfg.Reconnect.MaxDelay = "60s"
	}
	d, err = time.ParseDuration(cfg.Reconnect.MaxDelay)
	if err != nil {
		return fmt.Errorf("invalid reconnect.max_delay: %v", err)
	}
	cfg.Reconnect.maxDelay = d

	if cfg.Webhook.Timeout == "" {
		cfg.Webhook.Timeout = "10s"
	}
	d, err = time.ParseDuration(cfg.Webhook.Timeout)
	if err != nil {
		return fmt.Errorf("invalid webhook.timeout: %v", err)
	}
	cfg.Webhook.timeout = d

	if cfg.Webhook.BufferSize <= 0 {
		cfg.Webhook.BufferSize = 16
	}

	return nil
}

// LoadConfig loads configuration from a file. A .env file in the working
// directory, if present, is loaded before environment references in the
// config are expanded.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	// missing .env is not an error
	_ = godotenv.Load()

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	cfg = &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}
