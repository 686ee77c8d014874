package gates

import (
	"testing"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

var nyc, _ = time.LoadLocation("America/New_York")

// tradingTime is a Friday 10:30 ET, inside market hours
var tradingTime = time.Date(2025, 3, 14, 10, 30, 0, 0, nyc)

func newTestValidator(t *testing.T, mutate func(*config.ValidationConfig)) *Validator {
	t.Helper()
	cfg := config.DefaultConfig().Validation
	if mutate != nil {
		mutate(&cfg)
	}
	v := NewValidator(&cfg)
	v.now = func() time.Time { return tradingTime }
	return v
}

func validSignal() *domain.Signal {
	return &domain.Signal{
		TrackingID: "trk-1",
		Source:     domain.SourceTradingView,
		Symbol:     "SPY",
		Direction:  domain.DirectionCall,
		Timeframe:  "5m",
		Timestamp:  tradingTime.Add(-30 * time.Second),
	}
}

func TestValidate_AllChecksPass(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(validSignal())

	if !result.Valid {
		t.Fatalf("expected valid, got %s", result)
	}
	checks := result.Checks
	if !checks.Cooldown || !checks.MarketHours || !checks.MTF || !checks.Confluence || !checks.TimeFilters {
		t.Errorf("all checks must be true on a valid signal: %+v", checks)
	}
}

func TestValidate_CooldownRejectsSecondSignal(t *testing.T) {
	v := newTestValidator(t, nil)

	if result := v.Validate(validSignal()); !result.Valid {
		t.Fatalf("first signal must pass: %s", result)
	}
	result := v.Validate(validSignal())
	if result.Valid {
		t.Fatal("second signal inside cooldown must fail")
	}
	if result.RejectionReason != ReasonCooldown {
		t.Errorf("expected %q, got %q", ReasonCooldown, result.RejectionReason)
	}
}

func TestValidate_CooldownKeyedBySymbolAndDirection(t *testing.T) {
	v := newTestValidator(t, nil)

	if result := v.Validate(validSignal()); !result.Valid {
		t.Fatal("first signal must pass")
	}

	other := validSignal()
	other.Direction = domain.DirectionPut
	if result := v.Validate(other); !result.Valid {
		t.Errorf("opposite direction must not share the cooldown: %s", result)
	}

	qqq := validSignal()
	qqq.Symbol = "QQQ"
	if result := v.Validate(qqq); !result.Valid {
		t.Errorf("different symbol must not share the cooldown: %s", result)
	}
}

func TestValidate_OutsideMarketHours(t *testing.T) {
	night := time.Date(2025, 3, 14, 3, 0, 0, 0, nyc)
	v := newTestValidator(t, nil)
	v.now = func() time.Time { return night }

	sig := validSignal()
	sig.Timestamp = night
	aligned := true
	score := 0.9
	sig.Metadata = domain.SignalMetadata{MTFAligned: &aligned, ConfluenceScore: &score}

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("03:00 exchange-local must fail market hours regardless of metadata")
	}
	if result.RejectionReason != ReasonMarketHours {
		t.Errorf("expected %q, got %q", ReasonMarketHours, result.RejectionReason)
	}
	// Short-circuit: subsequent checks stay false
	if result.Checks.MTF || result.Checks.Confluence || result.Checks.TimeFilters {
		t.Errorf("checks after the failure must stay false: %+v", result.Checks)
	}
}

func TestValidate_MTFRequiredButMissing(t *testing.T) {
	v := newTestValidator(t, func(c *config.ValidationConfig) { c.RequireMTFAlignment = true })

	result := v.Validate(validSignal())
	if result.Valid {
		t.Fatal("missing MTF flag with alignment required must fail")
	}
	if result.RejectionReason != ReasonMTF {
		t.Errorf("expected %q, got %q", ReasonMTF, result.RejectionReason)
	}
}

func TestValidate_ConfluenceBelowThreshold(t *testing.T) {
	v := newTestValidator(t, nil)

	sig := validSignal()
	low := 0.2
	sig.Metadata.ConfluenceScore = &low

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("confluence below threshold must fail")
	}
	if result.RejectionReason != ReasonConfluence {
		t.Errorf("expected %q, got %q", ReasonConfluence, result.RejectionReason)
	}
}

func TestValidate_MissingConfluencePasses(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(validSignal())
	if !result.Valid {
		t.Errorf("absent confluence data must not reject: %s", result)
	}
}

func TestValidate_StaleSignal(t *testing.T) {
	v := newTestValidator(t, nil)

	sig := validSignal()
	sig.Timestamp = tradingTime.Add(-5 * time.Minute)

	result := v.Validate(sig)
	if result.Valid {
		t.Fatal("stale signal must fail the time filter")
	}
	if result.RejectionReason != ReasonSignalTooOld {
		t.Errorf("expected %q, got %q", ReasonSignalTooOld, result.RejectionReason)
	}
	// Everything before the time filter passed
	if !result.Checks.Cooldown || !result.Checks.MarketHours || !result.Checks.MTF || !result.Checks.Confluence {
		t.Errorf("checks before the failure must be true: %+v", result.Checks)
	}
}

func TestValidate_FirstFailureWinsOrdering(t *testing.T) {
	// Signal failing market hours, confluence and age must report market
	// hours, the first failing check in order.
	night := time.Date(2025, 3, 14, 3, 0, 0, 0, nyc)
	v := newTestValidator(t, nil)
	v.now = func() time.Time { return night }

	sig := validSignal()
	sig.Timestamp = night.Add(-10 * time.Minute)
	low := 0.1
	sig.Metadata.ConfluenceScore = &low

	result := v.Validate(sig)
	if result.RejectionReason != ReasonMarketHours {
		t.Errorf("first failing check must win: expected %q, got %q", ReasonMarketHours, result.RejectionReason)
	}
}
