package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables
// and overrides fields in the provided Config. Returns an error if parsing
// fails.
//
// Environment variables supported:
// - FPUSH_LOG_LEVEL (string, e.g. "debug")
// - FPUSH_LOG_FILE (string)
// - FPUSH_COMPONENT_HOST (string)
// - FPUSH_COMPONENT_PORT (int)
// - FPUSH_COMPONENT_DOMAIN (string)
// - FPUSH_COMPONENT_SECRET (string)
// - FPUSH_RECONNECT_INTERVAL (duration, e.g. "5s")
// - FPUSH_MAX_CONCURRENT_PUSHES (int)
// - FPUSH_SEND_ERROR_REPLIES (bool)
// - FPUSH_METRICS_ENABLED (bool)
// - FPUSH_METRICS_PORT (int)
// - FPUSH_INFLUX_URL / _TOKEN / _ORG / _BUCKET (string)
// - FPUSH_INFLUX_INTERVAL (duration, e.g. "1m")
func ApplyEnvOverrides(cfg *Config) error {
	setStringEnv("FPUSH_LOG_LEVEL", &cfg.LogLevel)
	setStringEnv("FPUSH_LOG_FILE", &cfg.LogFile)
	setStringEnv("FPUSH_COMPONENT_HOST", &cfg.Component.Host)
	setStringEnv("FPUSH_COMPONENT_DOMAIN", &cfg.Component.Domain)
	setStringEnv("FPUSH_COMPONENT_SECRET", &cfg.Component.Secret)
	setStringEnv("FPUSH_INFLUX_URL", &cfg.InfluxURL)
	setStringEnv("FPUSH_INFLUX_TOKEN", &cfg.InfluxToken)
	setStringEnv("FPUSH_INFLUX_ORG", &cfg.InfluxOrg)
	setStringEnv("FPUSH_INFLUX_BUCKET", &cfg.InfluxBucket)

	if err := setIntEnv("FPUSH_COMPONENT_PORT", &cfg.Component.Port); err != nil {
		return err
	}
	if err := setIntEnv("FPUSH_MAX_CONCURRENT_PUSHES", &cfg.MaxConcurrentPushes); err != nil {
		return err
	}
	if err := setIntEnv("FPUSH_METRICS_PORT", &cfg.MetricsPort); err != nil {
		return err
	}

	if err := setBoolEnv("FPUSH_SEND_ERROR_REPLIES", func(b bool) { cfg.SendErrorReplies = b }); err != nil {
		return err
	}
	if err := setBoolEnv("FPUSH_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}

	if err := setDurationEnv("FPUSH_RECONNECT_INTERVAL", &cfg.Component.ReconnectInterval); err != nil {
		return err
	}
	if err := setDurationEnv("FPUSH_INFLUX_INTERVAL", &cfg.InfluxInterval); err != nil {
		return err
	}
	return nil
}

func setStringEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntEnv(key string, dst *int) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setBoolEnv(key string, set func(bool)) error {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		set(b)
	}
	return nil
}

func setDurationEnv(key string, dst *time.Duration) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}
	return nil
}
