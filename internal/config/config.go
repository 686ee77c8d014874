package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, loaded once at startup and
// immutable afterward. Components receive it (or their section) by reference
// and never read ambient state directly.
type Config struct {
	Validation ValidationConfig `yaml:"validation"`
	Risk       RiskConfig       `yaml:"risk"`
	Sizing     SizingConfig     `yaml:"sizing"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Cache      CacheConfig      `yaml:"cache"`
	Dedup      DedupConfig      `yaml:"dedup"`
	GEX        GEXConfig        `yaml:"gex"`
	Exits      ExitConfig       `yaml:"exits"`
	Providers  ProviderConfig   `yaml:"providers"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	LogLevel   string           `yaml:"log_level"`
}

// ValidationConfig holds signal validation thresholds
type ValidationConfig struct {
	CooldownSeconds     int     `yaml:"cooldown_seconds"` // per (symbol, direction) re-entry cooldown
	MarketOpen          string  `yaml:"market_open"`      // HH:MM exchange-local
	MarketClose         string  `yaml:"market_close"`     // HH:MM exchange-local
	MarketTimezone      string  `yaml:"market_timezone"`  // IANA zone, e.g. America/New_York
	MaxSignalAgeSeconds int     `yaml:"max_signal_age_seconds"`
	MinConfluenceScore  float64 `yaml:"min_confluence_score"` // 0.0-1.0
	RequireMTFAlignment bool    `yaml:"require_mtf_alignment"`
}

// RiskConfig holds market-condition filter thresholds
type RiskConfig struct {
	CautionVolatility float64 `yaml:"caution_volatility"` // above this, size multiplier halves (default 30)
	MaxVolatility     float64 `yaml:"max_volatility"`     // hard entry ceiling (default 40)
	MaxExposure       float64 `yaml:"max_exposure"`       // max aggregate notional across open positions
}

// SizingConfig holds position sizing parameters
type SizingConfig struct {
	BaseSize      float64 `yaml:"base_size"`      // starting contract count before multipliers
	KellyFraction float64 `yaml:"kelly_fraction"` // fraction of full Kelly (default 0.25)
	MinSize       int     `yaml:"min_size"`
	MaxSize       int     `yaml:"max_size"`
}

// ConfidenceConfig holds the base confidence and each adjustment's bounds
type ConfidenceConfig struct {
	Base              float64 `yaml:"base"`                // starting confidence 0-100
	MinEntry          float64 `yaml:"min_entry"`           // acceptance threshold
	ContextAdjMax     float64 `yaml:"context_adj_max"`     // |context adjustment| bound
	PositioningAdjMax float64 `yaml:"positioning_adj_max"` // |positioning adjustment| bound
	GEXAdjMax         float64 `yaml:"gex_adj_max"`         // |GEX adjustment| bound before weighting
}

// CacheConfig holds context cache TTLs
type CacheConfig struct {
	ContextTTLSeconds    int `yaml:"context_ttl_seconds"`    // fresh window (default 60)
	StaleFallbackSeconds int `yaml:"stale_fallback_seconds"` // stale-serve ceiling on fetch failure (default 300)
}

// DedupConfig holds duplicate suppression windows. The store is in-memory
// unless the redis section is configured.
type DedupConfig struct {
	WindowSeconds int `yaml:"window_seconds"` // duplicate window (default 60)
	ExpirySeconds int `yaml:"expiry_seconds"` // fingerprint retention (default 300)
}

// GEXConfig holds gamma-exposure staleness parameters
type GEXConfig struct {
	StaleThresholdHours  float64 `yaml:"stale_threshold_hours"`  // default 4
	StaleWeightReduction float64 `yaml:"stale_weight_reduction"` // default 0.5 -> half weight when stale
}

// ExitConfig holds exit rule thresholds, evaluated in fixed priority order
type ExitConfig struct {
	ProfitTargetPct      float64 `yaml:"profit_target_pct"` // % gain on entry notional
	StopLossPct          float64 `yaml:"stop_loss_pct"`     // % loss, positive number
	MaxHoldHours         float64 `yaml:"max_hold_hours"`
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"` // open-position exit sweep cadence
}

// ProviderConfig holds external fetch behavior
type ProviderConfig struct {
	TimeoutSeconds   int     `yaml:"timeout_seconds"` // per-attempt bound (default 5)
	RetryAttempts    int     `yaml:"retry_attempts"`  // default 3
	BackoffBaseMs    int     `yaml:"backoff_base_ms"` // first retry delay (default 250)
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	ContextURL       string  `yaml:"context_url"`
	ContextBackupURL string  `yaml:"context_backup_url"` // optional fallback provider
	GEXURL           string  `yaml:"gex_url"`
	PriceStreamURL   string  `yaml:"price_stream_url"` // websocket price feed, optional
}

// HTTPConfig holds the ingress server settings
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig holds the optional Postgres position store settings
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"` // empty -> in-memory position store
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RedisConfig holds shared redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns production defaults. The hand-tuned thresholds from
// the source strategy are preserved here rather than hard-coded at use sites.
func DefaultConfig() *Config {
	return &Config{
		Validation: ValidationConfig{
			CooldownSeconds:     300, // 5 minutes between same symbol/direction entries
			MarketOpen:          "09:30",
			MarketClose:         "16:00",
			MarketTimezone:      "America/New_York",
			MaxSignalAgeSeconds: 120, // reject signals older than 2 minutes
			MinConfluenceScore:  0.5,
			RequireMTFAlignment: false,
		},
		Risk: RiskConfig{
			CautionVolatility: 30.0, // halve size above this
			MaxVolatility:     40.0, // reject outright above this
			MaxExposure:       250000.0,
		},
		Sizing: SizingConfig{
			BaseSize:      10.0,
			KellyFraction: 0.25, // quarter Kelly
			MinSize:       1,
			MaxSize:       50,
		},
		Confidence: ConfidenceConfig{
			Base:              50.0,
			MinEntry:          60.0,
			ContextAdjMax:     15.0,
			PositioningAdjMax: 10.0,
			GEXAdjMax:         20.0,
		},
		Cache: CacheConfig{
			ContextTTLSeconds:    60,
			StaleFallbackSeconds: 300, // serve stale up to 5 minutes on fetch failure
		},
		Dedup: DedupConfig{
			WindowSeconds: 60,
			ExpirySeconds: 300,
		},
		GEX: GEXConfig{
			StaleThresholdHours:  4.0,
			StaleWeightReduction: 0.5,
		},
		Exits: ExitConfig{
			ProfitTargetPct:      50.0,
			StopLossPct:          25.0,
			MaxHoldHours:         48.0,
			SweepIntervalSeconds: 30,
		},
		Providers: ProviderConfig{
			TimeoutSeconds:  5,
			RetryAttempts:   3,
			BackoffBaseMs:   250,
			RateLimitPerSec: 10.0,
			RateLimitBurst:  5,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		Database: DatabaseConfig{
			TimeoutSeconds: 5,
		},
		LogLevel: "info",
	}
}

// Load reads a yaml config file over the defaults and validates the result.
// An empty path yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section eagerly. Invalid configuration must prevent
// startup, with an error naming the offending field and value.
func (c *Config) Validate() error {
	if c.Validation.CooldownSeconds < 0 {
		return fmt.Errorf("invalid config: validation.cooldown_seconds = %d (must be >= 0)", c.Validation.CooldownSeconds)
	}
	if _, err := time.LoadLocation(c.Validation.MarketTimezone); err != nil {
		return fmt.Errorf("invalid config: validation.market_timezone = %q: %w", c.Validation.MarketTimezone, err)
	}
	if _, err := parseClock(c.Validation.MarketOpen); err != nil {
		return fmt.Errorf("invalid config: validation.market_open = %q (want HH:MM)", c.Validation.MarketOpen)
	}
	if _, err := parseClock(c.Validation.MarketClose); err != nil {
		return fmt.Errorf("invalid config: validation.market_close = %q (want HH:MM)", c.Validation.MarketClose)
	}
	if c.Validation.MaxSignalAgeSeconds <= 0 {
		return fmt.Errorf("invalid config: validation.max_signal_age_seconds = %d (must be > 0)", c.Validation.MaxSignalAgeSeconds)
	}
	if c.Validation.MinConfluenceScore < 0 || c.Validation.MinConfluenceScore > 1 {
		return fmt.Errorf("invalid config: validation.min_confluence_score = %.2f (must be in [0,1])", c.Validation.MinConfluenceScore)
	}
	if c.Risk.MaxVolatility <= 0 {
		return fmt.Errorf("invalid config: risk.max_volatility = %.2f (must be > 0)", c.Risk.MaxVolatility)
	}
	if c.Risk.CautionVolatility >= c.Risk.MaxVolatility {
		return fmt.Errorf("invalid config: risk.caution_volatility = %.2f (must be below max_volatility %.2f)", c.Risk.CautionVolatility, c.Risk.MaxVolatility)
	}
	if c.Sizing.BaseSize <= 0 {
		return fmt.Errorf("invalid config: sizing.base_size = %.2f (must be > 0)", c.Sizing.BaseSize)
	}
	if c.Sizing.KellyFraction <= 0 || c.Sizing.KellyFraction > 1 {
		return fmt.Errorf("invalid config: sizing.kelly_fraction = %.2f (must be in (0,1])", c.Sizing.KellyFraction)
	}
	if c.Sizing.MinSize < 0 {
		return fmt.Errorf("invalid config: sizing.min_size = %d (must be >= 0)", c.Sizing.MinSize)
	}
	if c.Sizing.MaxSize < c.Sizing.MinSize {
		return fmt.Errorf("invalid config: sizing.max_size = %d (must be >= min_size %d)", c.Sizing.MaxSize, c.Sizing.MinSize)
	}
	if c.Confidence.Base < 0 || c.Confidence.Base > 100 {
		return fmt.Errorf("invalid config: confidence.base = %.2f (must be in [0,100])", c.Confidence.Base)
	}
	if c.Confidence.MinEntry < 0 || c.Confidence.MinEntry > 100 {
		return fmt.Errorf("invalid config: confidence.min_entry = %.2f (must be in [0,100])", c.Confidence.MinEntry)
	}
	if c.Cache.ContextTTLSeconds <= 0 {
		return fmt.Errorf("invalid config: cache.context_ttl_seconds = %d (must be > 0)", c.Cache.ContextTTLSeconds)
	}
	if c.Cache.StaleFallbackSeconds < c.Cache.ContextTTLSeconds {
		return fmt.Errorf("invalid config: cache.stale_fallback_seconds = %d (must be >= context_ttl_seconds %d)", c.Cache.StaleFallbackSeconds, c.Cache.ContextTTLSeconds)
	}
	if c.Dedup.WindowSeconds <= 0 {
		return fmt.Errorf("invalid config: dedup.window_seconds = %d (must be > 0)", c.Dedup.WindowSeconds)
	}
	if c.Dedup.ExpirySeconds < c.Dedup.WindowSeconds {
		return fmt.Errorf("invalid config: dedup.expiry_seconds = %d (must be >= window_seconds %d)", c.Dedup.ExpirySeconds, c.Dedup.WindowSeconds)
	}
	if c.GEX.StaleThresholdHours <= 0 {
		return fmt.Errorf("invalid config: gex.stale_threshold_hours = %.2f (must be > 0)", c.GEX.StaleThresholdHours)
	}
	if c.GEX.StaleWeightReduction < 0 || c.GEX.StaleWeightReduction > 1 {
		return fmt.Errorf("invalid config: gex.stale_weight_reduction = %.2f (must be in [0,1])", c.GEX.StaleWeightReduction)
	}
	if c.Exits.ProfitTargetPct <= 0 {
		return fmt.Errorf("invalid config: exits.profit_target_pct = %.2f (must be > 0)", c.Exits.ProfitTargetPct)
	}
	if c.Exits.StopLossPct <= 0 {
		return fmt.Errorf("invalid config: exits.stop_loss_pct = %.2f (must be > 0)", c.Exits.StopLossPct)
	}
	if c.Exits.MaxHoldHours <= 0 {
		return fmt.Errorf("invalid config: exits.max_hold_hours = %.2f (must be > 0)", c.Exits.MaxHoldHours)
	}
	if c.Exits.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("invalid config: exits.sweep_interval_seconds = %d (must be > 0)", c.Exits.SweepIntervalSeconds)
	}
	if c.Providers.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid config: providers.timeout_seconds = %d (must be > 0)", c.Providers.TimeoutSeconds)
	}
	if c.Providers.RetryAttempts <= 0 {
		return fmt.Errorf("invalid config: providers.retry_attempts = %d (must be > 0)", c.Providers.RetryAttempts)
	}
	return nil
}

// ClockMinutes is a minutes-since-midnight clock value used for the
// market-hours window
type ClockMinutes int

func parseClock(s string) (ClockMinutes, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return ClockMinutes(t.Hour()*60 + t.Minute()), nil
}

// MarketWindow returns the configured open/close window in minutes since
// midnight, plus the exchange location. Validate has already guaranteed these
// parse.
func (v *ValidationConfig) MarketWindow() (open, close ClockMinutes, loc *time.Location) {
	open, _ = parseClock(v.MarketOpen)
	close, _ = parseClock(v.MarketClose)
	loc, _ = time.LoadLocation(v.MarketTimezone)
	return open, close, loc
}

// Timeout returns the per-attempt provider timeout as a duration
func (p *ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// BackoffBase returns the first retry delay as a duration
func (p *ProviderConfig) BackoffBase() time.Duration {
	return time.Duration(p.BackoffBaseMs) * time.Millisecond
}

// ContextTTL returns the fresh-cache window as a duration
func (c *CacheConfig) ContextTTL() time.Duration {
	return time.Duration(c.ContextTTLSeconds) * time.Second
}

// StaleFallback returns the stale-serve ceiling as a duration
func (c *CacheConfig) StaleFallback() time.Duration {
	return time.Duration(c.StaleFallbackSeconds) * time.Second
}

// Window returns the duplicate window as a duration
func (d *DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowSeconds) * time.Second
}

// Expiry returns the fingerprint retention period as a duration
func (d *DedupConfig) Expiry() time.Duration {
	return time.Duration(d.ExpirySeconds) * time.Second
}

// StaleThreshold returns the GEX staleness threshold as a duration
func (g *GEXConfig) StaleThreshold() time.Duration {
	return time.Duration(g.StaleThresholdHours * float64(time.Hour))
}

// Cooldown returns the validation cooldown as a duration
func (v *ValidationConfig) Cooldown() time.Duration {
	return time.Duration(v.CooldownSeconds) * time.Second
}

// MaxSignalAge returns the maximum accepted signal age as a duration
func (v *ValidationConfig) MaxSignalAge() time.Duration {
	return time.Duration(v.MaxSignalAgeSeconds) * time.Second
}

// MaxHold returns the maximum position hold time as a duration
func (e *ExitConfig) MaxHold() time.Duration {
	return time.Duration(e.MaxHoldHours * float64(time.Hour))
}

// SweepInterval returns the exit monitor cadence as a duration
func (e *ExitConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalSeconds) * time.Second
}

// Timeout returns the per-call database deadline as a duration
func (d *DatabaseConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}
