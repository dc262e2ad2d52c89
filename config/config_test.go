package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Fatalf("expected default mode %q, got %q", ModeLocal, cfg.Mode)
	}
	if cfg.RateLimitRPM != 600 {
		t.Fatalf("expected default rate limit 600, got %d", cfg.RateLimitRPM)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"addr":":9090","rate_limit_rpm":100}`), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected overridden addr, got %s", cfg.Addr)
	}
	if cfg.RateLimitRPM != 100 {
		t.Fatalf("expected overridden rate limit, got %d", cfg.RateLimitRPM)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected untouched default data_dir, got %s", cfg.DataDir)
	}
}

func TestValidateRequiresWSGatewayInProduction(t *testing.T) {
	cfg := defaults()
	cfg.Mode = ModeProduction
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for production mode without ws_gateway_endpoint")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bogus_field": true}`), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}
