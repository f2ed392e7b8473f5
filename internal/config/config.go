// Package config holds the immutable process-lifetime settings for the
// gateway: component connection parameters and per-backend push
// configuration. Loaded once at startup and shared read-only.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Component describes the XEP-0114 component connection to the upstream
// XMPP server.
type Component struct {
	// Host is the XMPP server hostname to dial.
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// Domain is the component JID this gateway serves (e.g. "push.example.org").
	Domain string `json:"domain" yaml:"domain"`
	// Secret is the shared handshake secret.
	Secret string `json:"secret" yaml:"secret"`
	// ReconnectInterval is the fixed backoff between connection attempts.
	ReconnectInterval time.Duration `json:"reconnect_interval" yaml:"reconnect_interval"`
}

// Addr returns the dial address host:port.
func (c Component) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AcrobitsConfig configures the Acrobits singlepush HTTP backend.
type AcrobitsConfig struct {
	// JID is the component subdomain whose notifications route here
	// (e.g. "acrobits.push.example.org").
	JID string `json:"jid" yaml:"jid"`
	// Endpoint is the singlepush API URL.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// AppID is the provider-assigned application identifier.
	AppID string `json:"app_id" yaml:"app_id"`
	// Message is the fixed notification body.
	Message string        `json:"message" yaml:"message"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ApnsConfig configures the certificate-authenticated APNs backend.
type ApnsConfig struct {
	JID string `json:"jid" yaml:"jid"`
	// CertFile is a PEM-encoded client certificate + key.
	CertFile string `json:"cert_file" yaml:"cert_file"`
	// CertPassword unlocks the certificate when it is a PKCS#12 bundle.
	CertPassword string `json:"cert_password" yaml:"cert_password"`
	// Topic is the APNs topic, usually the app bundle id.
	Topic string `json:"topic" yaml:"topic"`
	// Sandbox selects the APNs development gateway.
	Sandbox bool `json:"sandbox" yaml:"sandbox"`
}

// GotifyConfig configures a Gotify server backend.
type GotifyConfig struct {
	JID     string        `json:"jid" yaml:"jid"`
	URL     string        `json:"url" yaml:"url"`
	Token   string        `json:"token" yaml:"token"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Config is the root settings object.
type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	Component Component `json:"component" yaml:"component"`

	// MaxConcurrentPushes bounds in-flight dispatches spawned by the
	// message loop.
	MaxConcurrentPushes int `json:"max_concurrent_pushes" yaml:"max_concurrent_pushes"`

	// SendErrorReplies controls whether the gateway answers undeliverable
	// notifications with a protocol-level error stanza.
	SendErrorReplies bool `json:"send_error_replies" yaml:"send_error_replies"`

	// Backends; a nil section means the backend is not configured.
	Acrobits *AcrobitsConfig `json:"acrobits" yaml:"acrobits"`
	Apns     *ApnsConfig     `json:"apns" yaml:"apns"`
	Gotify   *GotifyConfig   `json:"gotify" yaml:"gotify"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`
}

// DefaultConfig returns a sane default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Component: Component{
			Port:              5347,
			ReconnectInterval: 5 * time.Second,
		},
		MaxConcurrentPushes: 32,

		MetricsEnabled: false,
		MetricsPort:    9090,
		InfluxInterval: 1 * time.Minute,
	}
}

// Check returns the first startup-fatal configuration error, or nil.
// Running without a reachable component endpoint or without any backend
// would silently drop every notification, so both are fatal.
func (c *Config) Check() error {
	if c.Component.Host == "" {
		return fmt.Errorf("component.host is required")
	}
	if c.Component.Domain == "" {
		return fmt.Errorf("component.domain is required")
	}
	if c.Component.Secret == "" {
		return fmt.Errorf("component.secret is required")
	}
	if c.Component.Port <= 0 || c.Component.Port > 65535 {
		return fmt.Errorf("component.port %d out of range", c.Component.Port)
	}
	if c.Acrobits == nil && c.Apns == nil && c.Gotify == nil {
		return fmt.Errorf("no push backend configured")
	}
	return nil
}

// Validate returns a list of non-fatal configuration warnings, such as
// incomplete backend credential combinations.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.Acrobits != nil && c.Acrobits.JID == "", "acrobits backend configured but jid is missing"},
		{c.Apns != nil && c.Apns.JID == "", "apns backend configured but jid is missing"},
		{c.Apns != nil && c.Apns.Topic == "", "apns backend configured but topic is missing"},
		{c.Gotify != nil && c.Gotify.JID == "", "gotify backend configured but jid is missing"},
		{c.Gotify != nil && c.Gotify.URL != "" && c.Gotify.Token == "", "gotify URL provided but token is missing"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.Component.ReconnectInterval < time.Second, "reconnect interval below one second may hammer the XMPP server"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file on top of the
// defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
