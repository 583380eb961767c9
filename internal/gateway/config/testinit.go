package config

import (
	"testing"
)

// TestInit installs a default configuration backed by a per-test temporary
// sessions directory. Tests that exercise config-dependent components call
// this before touching the session packages.
func TestInit(t *testing.T) {
	t.Helper()

	c := &ConfigParam{
		FormatVersion:  ConfigFormatVersion,
		ServerHostName: "127.0.0.1",
		ServerPort:     "8347",
		Sessions: SessionsConfig{
			Dir: t.TempDir(),
		},
		Reconnect: ReconnectConfig{
			Delay: "10ms",
		},
		Webhook: WebhookConfig{
			Timeout: "2s",
		},
	}
	if err := ValidateConfig(c); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	prev := cfg
	cfg = c
	t.Cleanup(func() {
		cfg = prev
	})
}
