package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("COURSEGATE_SALES_CLIENT_ID", "cid")
	t.Setenv("COURSEGATE_SALES_CLIENT_SECRET", "secret")
	t.Setenv("COURSEGATE_SALES_ACCOUNT_ID", "acct-1")
	t.Setenv("COURSEGATE_SALES_TOKEN_URL", "https://pay.example/oauth/token")
	t.Setenv("COURSEGATE_SALES_BASE_URL", "https://pay.example/v1")
	t.Setenv("COURSEGATE_GATE_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("COURSEGATE_TOKEN_SECRET", "token-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Sales.Timeout != 15*time.Second {
		t.Fatalf("unexpected sales timeout: %v", cfg.Sales.Timeout)
	}
	if cfg.Gate.TokenTTL != 12*time.Hour {
		t.Fatalf("unexpected token ttl: %v", cfg.Gate.TokenTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	var cfg Config
	cfg.Sales.Timeout = time.Second
	cfg.Gate.TokenTTL = time.Hour

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMissingValue) {
		t.Fatalf("expected ErrMissingValue, got %v", err)
	}
	for _, name := range []string{
		"COURSEGATE_SALES_CLIENT_ID",
		"COURSEGATE_SALES_CLIENT_SECRET",
		"COURSEGATE_SALES_ACCOUNT_ID",
		"COURSEGATE_GATE_PASSWORD_HASH",
		"COURSEGATE_TOKEN_SECRET",
	} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got %v", name, err)
		}
	}
}

func TestValidateRejectsNonPositiveRateLimit(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.RateBurst = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero rate burst")
	}
	cfg.RateBurst = 20
	cfg.RatePerSec = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative rate per second")
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Sales.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sales timeout")
	}
}
