package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/pipeline")
	t.Setenv("JWT_SECRET", "secret")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.OverlapPolicy != "allow" {
		t.Errorf("OverlapPolicy = %q", cfg.OverlapPolicy)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
	if cfg.EarlyAccess {
		t.Error("EarlyAccess should be off by default")
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("EARLY_ACCESS", "true")
	t.Setenv("OVERLAP_POLICY", "dedupe")
	t.Setenv("RULE_CACHE_TTL", "1m")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !cfg.EarlyAccess || cfg.OverlapPolicy != "dedupe" || cfg.RuleCacheTTL != time.Minute {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestParseMissingDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Parse()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseInvalidPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("OVERLAP_POLICY", "merge")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestParseInvalidRate(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_RATE_PER_MIN", "0")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error for zero rate")
	}
}
