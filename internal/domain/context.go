package domain

import "time"

// Trend is the coarse market direction classification
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// VolRegime is the coarse volatility classification driving sizing and
// confidence adjustments
type VolRegime string

const (
	RegimeLow    VolRegime = "low"
	RegimeNormal VolRegime = "normal"
	RegimeHigh   VolRegime = "high"
)

// ContextData is a single current market context snapshot. It is owned by the
// context cache and replaced wholesale on refresh, never partially mutated.
type ContextData struct {
	VolatilityIndex float64   `json:"volatility_index"` // VIX-style volatility level
	Trend           Trend     `json:"trend"`
	Bias            float64   `json:"bias"` // signed directional bias, positive = bullish
	Regime          VolRegime `json:"regime"`
	Timestamp       time.Time `json:"timestamp"`
}

// Age returns how old the snapshot is relative to now
func (c *ContextData) Age(now time.Time) time.Duration {
	return now.Sub(c.Timestamp)
}

// AlignedWith reports whether the given direction agrees with the context
// trend. Neutral trend aligns with neither direction.
func (c *ContextData) AlignedWith(direction Direction) bool {
	switch c.Trend {
	case TrendBullish:
		return direction == DirectionCall
	case TrendBearish:
		return direction == DirectionPut
	default:
		return false
	}
}

// CounterTrend reports whether the given direction opposes the context trend
func (c *ContextData) CounterTrend(direction Direction) bool {
	switch c.Trend {
	case TrendBullish:
		return direction == DirectionPut
	case TrendBearish:
		return direction == DirectionCall
	default:
		return false
	}
}
