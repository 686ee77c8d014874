package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_NamesOffendingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad timezone", func(c *Config) { c.Validation.MarketTimezone = "Mars/Olympus" }, "validation.market_timezone"},
		{"bad market open", func(c *Config) { c.Validation.MarketOpen = "9am" }, "validation.market_open"},
		{"caution above ceiling", func(c *Config) { c.Risk.CautionVolatility = 45 }, "risk.caution_volatility"},
		{"zero base size", func(c *Config) { c.Sizing.BaseSize = 0 }, "sizing.base_size"},
		{"kelly out of range", func(c *Config) { c.Sizing.KellyFraction = 1.5 }, "sizing.kelly_fraction"},
		{"max below min size", func(c *Config) { c.Sizing.MinSize = 10; c.Sizing.MaxSize = 5 }, "sizing.max_size"},
		{"confidence base out of range", func(c *Config) { c.Confidence.Base = 120 }, "confidence.base"},
		{"dedup expiry below window", func(c *Config) { c.Dedup.ExpirySeconds = 10 }, "dedup.expiry_seconds"},
		{"stale weight out of range", func(c *Config) { c.GEX.StaleWeightReduction = 2 }, "gex.stale_weight_reduction"},
		{"zero retry attempts", func(c *Config) { c.Providers.RetryAttempts = 0 }, "providers.retry_attempts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q must name field %q", err.Error(), tc.want)
			}
		})
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
risk:
  caution_volatility: 25
  max_volatility: 35
sizing:
  base_size: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Risk.CautionVolatility != 25 || cfg.Risk.MaxVolatility != 35 {
		t.Errorf("risk overrides not applied: %+v", cfg.Risk)
	}
	if cfg.Sizing.BaseSize != 5 {
		t.Errorf("sizing override not applied: %+v", cfg.Sizing)
	}
	// Untouched sections keep defaults
	if cfg.Dedup.WindowSeconds != 60 {
		t.Errorf("expected default dedup window, got %d", cfg.Dedup.WindowSeconds)
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("risk:\n  max_volatility: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected load to fail on invalid config")
	}
}
