// Package config loads HiveBoard's process configuration from a single
// JSON file, per the server's "no hidden environment state" requirement.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Mode selects the deployment posture: local enables the native WebSocket
// bus and permissive CORS; production disables CORS and activates the
// HTTP-bridge broadcast adapter instead.
type Mode string

const (
	ModeLocal      Mode = "local"
	ModeProduction Mode = "production"
)

// Config holds every recognized HiveBoard configuration option (spec §6.6).
type Config struct {
	Addr            string `json:"addr"`
	DataDir         string `json:"data_dir"`
	Mode            Mode   `json:"mode"`

	WSGatewayEndpoint string `json:"ws_gateway_endpoint"`
	WSGatewayRegion   string `json:"ws_gateway_region"`

	DevKey string `json:"dev_key"`

	// JWTSecret/JWTExpiry are pass-through session-auth settings consumed
	// by the web dashboard, which is out of scope here — HiveBoard only
	// carries them so a co-deployed dashboard can read the same file.
	JWTSecret string        `json:"jwt_secret"`
	JWTExpiry time.Duration `json:"-"`
	JWTExpirySeconds int    `json:"jwt_expiry_seconds"`

	StuckThresholdSeconds int `json:"stuck_threshold_seconds"`

	RedisURL string `json:"redis_url"`

	GracefulTimeoutSeconds int `json:"graceful_timeout_seconds"`
	PruneIntervalSeconds   int `json:"prune_interval_seconds"`
	RequestTimeoutSeconds  int `json:"request_timeout_seconds"`

	RateLimitEnabled bool `json:"rate_limit_enabled"`
	RateLimitRPM     int  `json:"rate_limit_rpm"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
}

// rawConfig mirrors Config for strict JSON decoding (DisallowUnknownFields
// rejects typos in the config file instead of silently ignoring them).
type rawConfig Config

// defaults returns the baseline configuration before the file is applied.
func defaults() *Config {
	return &Config{
		Addr:                   ":8080",
		DataDir:                "./data",
		Mode:                   ModeLocal,
		StuckThresholdSeconds:  300,
		GracefulTimeoutSeconds: 15,
		PruneIntervalSeconds:   300,
		RequestTimeoutSeconds:  30,
		RateLimitEnabled:       true,
		RateLimitRPM:           600,
		CORSAllowedOrigins:     []string{"*"},
	}
}

// Load reads the configuration file named by HIVEBOARD_CONFIG (or the
// supplied default path if the env var is unset) and merges it over the
// built-in defaults.
func Load(defaultPath string) (*Config, error) {
	path := defaultPath
	if v, ok := os.LookupEnv("HIVEBOARD_CONFIG"); ok && v != "" {
		path = v
	}

	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw := rawConfig(*cfg)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	*cfg = Config(raw)

	if cfg.JWTExpirySeconds > 0 {
		cfg.JWTExpiry = time.Duration(cfg.JWTExpirySeconds) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants not expressible in struct tags.
func (c *Config) Validate() error {
	if c.Mode != ModeLocal && c.Mode != ModeProduction {
		return fmt.Errorf("config: mode must be %q or %q, got %q", ModeLocal, ModeProduction, c.Mode)
	}
	if c.Mode == ModeProduction {
		if c.WSGatewayEndpoint == "" {
			return fmt.Errorf("config: ws_gateway_endpoint is required in production mode")
		}
		if c.WSGatewayRegion == "" {
			return fmt.Errorf("config: ws_gateway_region is required in production mode")
		}
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.StuckThresholdSeconds <= 0 {
		c.StuckThresholdSeconds = 300
	}
	return nil
}

// IsLocal returns true when running with the native WebSocket bus.
func (c *Config) IsLocal() bool { return c.Mode == ModeLocal }

// IsProduction returns true when the HTTP-bridge adapter should be used.
func (c *Config) IsProduction() bool { return c.Mode == ModeProduction }

// StuckThreshold returns the configured stuck-detection window as a Duration.
func (c *Config) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdSeconds) * time.Second
}

// GracefulTimeout returns the shutdown grace period as a Duration.
func (c *Config) GracefulTimeout() time.Duration {
	return time.Duration(c.GracefulTimeoutSeconds) * time.Second
}

// PruneInterval returns the retention sweep period as a Duration.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request deadline as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
