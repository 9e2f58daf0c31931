package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected lower-cased log level, got %s", cfg.LogLevel)
	}
	if cfg.OTP.TTL != 5*time.Minute || cfg.OTP.Length != 6 || cfg.OTP.MaxAttempts != 3 {
		t.Fatalf("unexpected otp defaults: %+v", cfg.OTP)
	}
	if cfg.Search.SimThreshold != 0.1 || cfg.Search.TopK != 50 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.DBMaxConns != 10 || cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected backend defaults: %d %s", cfg.DBMaxConns, cfg.ConnectTimeout)
	}
	if cfg.PhoneDefaultRegion != "SY" {
		t.Fatalf("expected SY default region, got %s", cfg.PhoneDefaultRegion)
	}
	if cfg.Session.Secret == "" {
		t.Fatalf("expected a development session secret")
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "s3cret")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/nafee3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be treated as dev")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("OTP_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for OTP_TTL")
	}
}

func TestLoadClientIgnoresServerRequirements(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("API_URL", "https://api.nafee3.example")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("load client: %v", err)
	}
	if cfg.APIURL != "https://api.nafee3.example" || cfg.Region != "SY" || cfg.LogLevel != "warn" {
		t.Fatalf("unexpected client config %+v", cfg)
	}
}
