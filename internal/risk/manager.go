package risk

import (
	"fmt"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// FilterCheck records one market-condition sub-filter evaluation
type FilterCheck struct {
	Name        string      `json:"name"`
	Passed      bool        `json:"passed"`
	Value       interface{} `json:"value"`
	Threshold   interface{} `json:"threshold,omitempty"`
	Description string      `json:"description"`
}

// FilterResult reports all three market filters regardless of outcome. Only
// the volatility ceiling rejects outright; the hours and trend checks inform
// confidence and sizing downstream.
type FilterResult struct {
	Passed                 bool                    `json:"passed"`
	Filters                map[string]*FilterCheck `json:"filters"`
	RejectionReason        string                  `json:"rejection_reason,omitempty"`
	PositionSizeMultiplier float64                 `json:"position_size_multiplier"`
}

// Manager applies market-condition filters and produces the signed
// confidence adjustments for the decision path
type Manager struct {
	cfg        *config.RiskConfig
	validation *config.ValidationConfig
	confidence *config.ConfidenceConfig
}

// NewManager creates a risk manager
func NewManager(cfg *config.RiskConfig, validation *config.ValidationConfig, confidence *config.ConfidenceConfig) *Manager {
	return &Manager{cfg: cfg, validation: validation, confidence: confidence}
}

// ApplyMarketFilters evaluates the volatility, market-hours and trend
// filters. All three are always evaluated and reported; a volatility reading
// above the hard ceiling sets Passed=false. The size multiplier defaults to
// 1.0 and halves above the caution threshold.
func (m *Manager) ApplyMarketFilters(sig *domain.Signal, ctx *domain.ContextData) *FilterResult {
	result := &FilterResult{
		Passed:                 true,
		Filters:                make(map[string]*FilterCheck),
		PositionSizeMultiplier: 1.0,
	}

	vol := ctx.VolatilityIndex
	volCheck := &FilterCheck{
		Name:        "volatility",
		Value:       vol,
		Threshold:   m.cfg.MaxVolatility,
		Passed:      vol <= m.cfg.MaxVolatility,
		Description: fmt.Sprintf("volatility %.1f vs ceiling %.1f", vol, m.cfg.MaxVolatility),
	}
	result.Filters["volatility"] = volCheck
	if !volCheck.Passed {
		result.Passed = false
		result.RejectionReason = fmt.Sprintf("volatility %.1f above maximum %.1f", vol, m.cfg.MaxVolatility)
	} else if vol > m.cfg.CautionVolatility {
		result.PositionSizeMultiplier = 0.5
	}

	hoursCheck := &FilterCheck{
		Name:        "market_hours",
		Value:       sig.Timestamp.Format(time.RFC3339),
		Passed:      m.insideMarketHours(sig.Timestamp),
		Description: fmt.Sprintf("window %s-%s %s", m.validation.MarketOpen, m.validation.MarketClose, m.validation.MarketTimezone),
	}
	result.Filters["market_hours"] = hoursCheck

	trendCheck := &FilterCheck{
		Name:        "trend",
		Value:       string(ctx.Trend),
		Passed:      !ctx.CounterTrend(sig.Direction),
		Description: fmt.Sprintf("%s signal against %s trend", sig.Direction, ctx.Trend),
	}
	result.Filters["trend"] = trendCheck

	return result
}

func (m *Manager) insideMarketHours(ts time.Time) bool {
	open, close, loc := m.validation.MarketWindow()
	local := ts.In(loc)
	minutes := config.ClockMinutes(local.Hour()*60 + local.Minute())
	return minutes >= open && minutes < close
}

// Relative component weights inside the context adjustment. Trend dominates
// so counter-trend signals net negative even in the friendliest volatility.
const (
	trendComponent  = 0.6
	volComponent    = 0.3
	regimeComponent = 0.2
)

// CalculateContextAdjustment returns a signed confidence adjustment bounded
// by the configured range. Trend-aligned signals adjust positive,
// counter-trend always negative; low volatility and a low regime push up,
// high push down.
func (m *Manager) CalculateContextAdjustment(sig *domain.Signal, ctx *domain.ContextData) float64 {
	var score float64

	switch {
	case ctx.AlignedWith(sig.Direction):
		score += trendComponent
	case ctx.CounterTrend(sig.Direction):
		score -= 2 * trendComponent
	}

	if ctx.VolatilityIndex < m.cfg.CautionVolatility {
		score += volComponent
	} else if ctx.VolatilityIndex > m.cfg.MaxVolatility {
		score -= volComponent
	}

	switch ctx.Regime {
	case domain.RegimeLow:
		score += regimeComponent
	case domain.RegimeHigh:
		score -= regimeComponent
	}

	return clamp(score, -1.0, 1.0) * m.confidence.ContextAdjMax
}

// CalculatePositioningAdjustment returns a signed adjustment from the context
// bias scalar: positive bias favors calls, negative favors puts, bounded by
// the configured range.
func (m *Manager) CalculatePositioningAdjustment(sig *domain.Signal, ctx *domain.ContextData) float64 {
	bias := clamp(ctx.Bias, -1.0, 1.0)
	if sig.Direction == domain.DirectionPut {
		bias = -bias
	}
	return bias * m.confidence.PositioningAdjMax
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
