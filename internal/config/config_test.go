package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Component.Port != 5347 {
		t.Errorf("expected default component port 5347, got %d", cfg.Component.Port)
	}
	if cfg.Component.ReconnectInterval != 5*time.Second {
		t.Errorf("expected default reconnect interval 5s, got %v", cfg.Component.ReconnectInterval)
	}
	if cfg.MaxConcurrentPushes < 1 {
		t.Errorf("expected a positive default push concurrency, got %d", cfg.MaxConcurrentPushes)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeTempConfig(t, `{
		"log_level": "debug",
		"component": {
			"host": "xmpp.example.org",
			"domain": "push.example.org",
			"secret": "hunter2"
		},
		"acrobits": {
			"jid": "acrobits.push.example.org",
			"app_id": "com.example.app"
		}
	}`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if cfg.Component.Host != "xmpp.example.org" {
		t.Errorf("unexpected host %q", cfg.Component.Host)
	}
	// defaults survive partial files
	if cfg.Component.Port != 5347 {
		t.Errorf("expected default port to survive, got %d", cfg.Component.Port)
	}
	if cfg.Acrobits == nil || cfg.Acrobits.AppID != "com.example.app" {
		t.Errorf("acrobits section not decoded: %+v", cfg.Acrobits)
	}
	if cfg.Apns != nil {
		t.Errorf("apns should be absent, got %+v", cfg.Apns)
	}
	if err := cfg.Check(); err != nil {
		t.Errorf("expected complete config to pass Check, got %v", err)
	}
	if cfg.Component.Addr() != "xmpp.example.org:5347" {
		t.Errorf("unexpected addr %q", cfg.Component.Addr())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeTempConfig(t, "{not json")
	if _, err := LoadConfigFromFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing host", func(c *Config) { c.Component.Host = "" }, "component.host"},
		{"missing domain", func(c *Config) { c.Component.Domain = "" }, "component.domain"},
		{"missing secret", func(c *Config) { c.Component.Secret = "" }, "component.secret"},
		{"bad port", func(c *Config) { c.Component.Port = 70000 }, "out of range"},
		{"no backends", func(c *Config) { c.Acrobits = nil }, "no push backend"},
		{"ok", func(c *Config) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Component.Host = "xmpp.example.org"
			cfg.Component.Domain = "push.example.org"
			cfg.Component.Secret = "s"
			cfg.Acrobits = &AcrobitsConfig{JID: "a.push.example.org", AppID: "app"}
			tt.mutate(cfg)
			err := cfg.Check()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gotify = &GotifyConfig{URL: "https://gotify.example.org"}
	cfg.InfluxURL = "http://influx:8086"
	cfg.Component.ReconnectInterval = 100 * time.Millisecond

	warnings := cfg.Validate()
	wantSubstrings := []string{"gotify", "influx", "reconnect interval"}
	for _, want := range wantSubstrings {
		found := false
		for _, w := range warnings {
			if strings.Contains(strings.ToLower(w), want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a warning mentioning %q, got %v", want, warnings)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FPUSH_COMPONENT_HOST", "env.example.org")
	t.Setenv("FPUSH_COMPONENT_PORT", "5222")
	t.Setenv("FPUSH_RECONNECT_INTERVAL", "30s")
	t.Setenv("FPUSH_METRICS_ENABLED", "true")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.Component.Host != "env.example.org" {
		t.Errorf("host override not applied: %q", cfg.Component.Host)
	}
	if cfg.Component.Port != 5222 {
		t.Errorf("port override not applied: %d", cfg.Component.Port)
	}
	if cfg.Component.ReconnectInterval != 30*time.Second {
		t.Errorf("interval override not applied: %v", cfg.Component.ReconnectInterval)
	}
	if !cfg.MetricsEnabled {
		t.Error("metrics override not applied")
	}
}

func TestApplyEnvOverridesRejectsGarbage(t *testing.T) {
	tests := []struct{ key, val string }{
		{"FPUSH_COMPONENT_PORT", "not-a-number"},
		{"FPUSH_RECONNECT_INTERVAL", "soon"},
		{"FPUSH_METRICS_ENABLED", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if err := ApplyEnvOverrides(DefaultConfig()); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
