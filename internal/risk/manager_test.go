package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

func newTestManager() *Manager {
	cfg := config.DefaultConfig()
	return NewManager(&cfg.Risk, &cfg.Validation, &cfg.Confidence)
}

func marketHoursSignal(dir domain.Direction) *domain.Signal {
	nyc, _ := time.LoadLocation("America/New_York")
	return &domain.Signal{
		TrackingID: "trk-1",
		Source:     domain.SourceTradingView,
		Symbol:     "SPY",
		Direction:  dir,
		Timeframe:  "5m",
		Timestamp:  time.Date(2025, 3, 14, 10, 30, 0, 0, nyc),
	}
}

func contextWith(vol float64, trend domain.Trend, regime domain.VolRegime) *domain.ContextData {
	return &domain.ContextData{
		VolatilityIndex: vol,
		Trend:           trend,
		Bias:            0,
		Regime:          regime,
		Timestamp:       time.Now(),
	}
}

func TestApplyMarketFilters_CautionVolatilityHalvesSize(t *testing.T) {
	m := newTestManager()
	// 35 is above the caution threshold (30) but below the ceiling (40)
	result := m.ApplyMarketFilters(marketHoursSignal(domain.DirectionCall), contextWith(35, domain.TrendBullish, domain.RegimeNormal))

	if !result.Passed {
		t.Fatalf("expected pass, got rejection: %s", result.RejectionReason)
	}
	if result.PositionSizeMultiplier != 0.5 {
		t.Errorf("multiplier = %.2f, want 0.5", result.PositionSizeMultiplier)
	}
}

func TestApplyMarketFilters_CeilingRejects(t *testing.T) {
	m := newTestManager()
	result := m.ApplyMarketFilters(marketHoursSignal(domain.DirectionCall), contextWith(60, domain.TrendBullish, domain.RegimeHigh))

	if result.Passed {
		t.Fatal("volatility above the hard ceiling must reject")
	}
	if !strings.Contains(strings.ToLower(result.RejectionReason), "volatility") {
		t.Errorf("rejection reason must mention volatility: %q", result.RejectionReason)
	}
	// All three filters are still reported
	for _, name := range []string{"volatility", "market_hours", "trend"} {
		if _, ok := result.Filters[name]; !ok {
			t.Errorf("filter %q missing from result", name)
		}
	}
}

func TestApplyMarketFilters_CalmMarketFullSize(t *testing.T) {
	m := newTestManager()
	result := m.ApplyMarketFilters(marketHoursSignal(domain.DirectionCall), contextWith(18, domain.TrendBullish, domain.RegimeLow))

	if !result.Passed || result.PositionSizeMultiplier != 1.0 {
		t.Errorf("calm market must pass at full size: passed=%v mult=%.2f", result.Passed, result.PositionSizeMultiplier)
	}
}

func TestApplyMarketFilters_TrendReportedNotRejecting(t *testing.T) {
	m := newTestManager()
	// Counter-trend: PUT against a bullish trend
	result := m.ApplyMarketFilters(marketHoursSignal(domain.DirectionPut), contextWith(18, domain.TrendBullish, domain.RegimeNormal))

	if !result.Passed {
		t.Fatal("a failing trend check must not reject on its own")
	}
	if result.Filters["trend"].Passed {
		t.Error("counter-trend check must report failure")
	}
}

func TestCalculateContextAdjustment_Sign(t *testing.T) {
	m := newTestManager()

	t.Run("counter-trend always negative", func(t *testing.T) {
		// Even in the friendliest volatility conditions
		adj := m.CalculateContextAdjustment(marketHoursSignal(domain.DirectionPut), contextWith(15, domain.TrendBullish, domain.RegimeLow))
		if adj >= 0 {
			t.Errorf("counter-trend adjustment must be negative, got %.2f", adj)
		}
	})

	t.Run("aligned always positive", func(t *testing.T) {
		// Even in hostile volatility conditions
		adj := m.CalculateContextAdjustment(marketHoursSignal(domain.DirectionCall), contextWith(45, domain.TrendBullish, domain.RegimeHigh))
		if adj <= 0 {
			t.Errorf("trend-aligned adjustment must be positive, got %.2f", adj)
		}
	})

	t.Run("low volatility increases", func(t *testing.T) {
		calm := m.CalculateContextAdjustment(marketHoursSignal(domain.DirectionCall), contextWith(15, domain.TrendNeutral, domain.RegimeLow))
		hot := m.CalculateContextAdjustment(marketHoursSignal(domain.DirectionCall), contextWith(45, domain.TrendNeutral, domain.RegimeHigh))
		if calm <= hot {
			t.Errorf("calm conditions must adjust higher than hot: %.2f vs %.2f", calm, hot)
		}
	})

	t.Run("bounded by configured range", func(t *testing.T) {
		cfg := config.DefaultConfig()
		adj := m.CalculateContextAdjustment(marketHoursSignal(domain.DirectionCall), contextWith(15, domain.TrendBullish, domain.RegimeLow))
		if adj > cfg.Confidence.ContextAdjMax || adj < -cfg.Confidence.ContextAdjMax {
			t.Errorf("adjustment %.2f outside +/-%.2f", adj, cfg.Confidence.ContextAdjMax)
		}
	})
}

func TestCalculatePositioningAdjustment(t *testing.T) {
	m := newTestManager()
	ctx := contextWith(20, domain.TrendNeutral, domain.RegimeNormal)
	ctx.Bias = 0.5

	call := m.CalculatePositioningAdjustment(marketHoursSignal(domain.DirectionCall), ctx)
	put := m.CalculatePositioningAdjustment(marketHoursSignal(domain.DirectionPut), ctx)

	if call <= 0 {
		t.Errorf("bullish bias must favor calls, got %.2f", call)
	}
	if put >= 0 {
		t.Errorf("bullish bias must penalize puts, got %.2f", put)
	}
	if call != -put {
		t.Errorf("adjustments must mirror: %.2f vs %.2f", call, put)
	}
}
