package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydro.yaml")
	raw := []byte("ledger_rpc_url: https://node.example:8645\npoll_interval: 2s\nuser_address: \"0x00000000000000000000000000000000000000aa\"\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HYDRO_POLL_INTERVAL", "250ms")
	t.Setenv("HYDRO_MAX_STALE_RETRIES", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerRPCURL != "https://node.example:8645" {
		t.Fatalf("yaml url not applied: %q", cfg.LedgerRPCURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("env must win over yaml, got %s", cfg.PollInterval)
	}
	if cfg.MaxStaleRetries != 5 {
		t.Fatalf("env retries not applied: %d", cfg.MaxStaleRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
	if got := cfg.User().Hex(); got != "0x00000000000000000000000000000000000000AA" {
		t.Fatalf("user address: %s", got)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	cases := map[string]struct {
		key   string
		value string
	}{
		"bad duration": {envPollInterval, "5sec"},
		"bad int":      {envMaxStaleRetries, "three"},
		"bad bool":     {envAllowInsecure, "yes please"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected load error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"empty url":        func(c *Config) { c.LedgerRPCURL = "" },
		"plain http":       func(c *Config) { c.LedgerRPCURL = "http://node:8645"; c.AllowInsecure = false },
		"bad user":         func(c *Config) { c.UserAddress = "not-an-address" },
		"bad frontend":     func(c *Config) { c.FrontendAddress = "xyz" },
		"zero poll":        func(c *Config) { c.PollInterval = 0 },
		"negative retries": func(c *Config) { c.MaxStaleRetries = -1 },
		"empty listen":     func(c *Config) { c.Listen = " " },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSanitizedMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.LedgerRPCToken = "token-value"
	cfg.SharedSecretValue = "secret-value"
	masked := cfg.Sanitized()
	if masked.LedgerRPCToken != "***" || masked.SharedSecretValue != "***" {
		t.Fatalf("secrets not masked: %+v", masked)
	}
	if cfg.LedgerRPCToken != "token-value" {
		t.Fatalf("original mutated")
	}
}

func TestFrontendUnsetIsZero(t *testing.T) {
	cfg := Default()
	if cfg.Frontend() != (common.Address{}) {
		t.Fatalf("expected zero frontend")
	}
}
