package sizing

import (
	"math"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/confluence"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Regime multipliers: low volatility boosts size, high volatility reduces it
const (
	lowRegimeMultiplier  = 1.2
	highRegimeMultiplier = 0.7
)

// Confluence multipliers by category
const (
	highConfluenceMultiplier = 1.2
	lowConfluenceMultiplier  = 0.8
)

// Calculations exposes every intermediate value of the multiplier chain for
// auditability
type Calculations struct {
	BaseSize             float64 `json:"base_size"`
	KellyMultiplier      float64 `json:"kelly_multiplier"`
	RegimeMultiplier     float64 `json:"regime_multiplier"`
	ConfluenceMultiplier float64 `json:"confluence_multiplier"`
	RawSize              float64 `json:"raw_size"`   // fractional value before the final floor
	FinalSize            int     `json:"final_size"` // floored and capped
}

// Result is the sizing outcome. BelowMinimum means the caller should treat
// the signal as "do not enter" rather than bumping the size up.
type Result struct {
	Size         int          `json:"size"`
	BelowMinimum bool         `json:"below_minimum"`
	Calculations Calculations `json:"calculations"`
}

// Service produces a whole-number contract quantity through a deterministic,
// ordered multiplier chain: base -> Kelly -> regime -> confluence. The
// running value stays fractional until the single floor at the end.
type Service struct {
	cfg *config.SizingConfig
}

// NewService creates a position sizing service
func NewService(cfg *config.SizingConfig) *Service {
	return &Service{cfg: cfg}
}

// CalculateSize runs the multiplier chain for the given confidence, market
// context and confluence category
func (s *Service) CalculateSize(confidence float64, ctx *domain.ContextData, category confluence.Category) *Result {
	calc := Calculations{
		BaseSize:             s.cfg.BaseSize,
		KellyMultiplier:      s.kellyMultiplier(confidence),
		RegimeMultiplier:     regimeMultiplier(ctx.Regime),
		ConfluenceMultiplier: confluenceMultiplier(category),
	}

	raw := calc.BaseSize
	raw *= calc.KellyMultiplier
	raw *= calc.RegimeMultiplier
	raw *= calc.ConfluenceMultiplier
	calc.RawSize = raw

	size := int(math.Floor(raw))
	if size < 0 {
		size = 0
	}
	if size > s.cfg.MaxSize {
		size = s.cfg.MaxSize
	}
	calc.FinalSize = size

	return &Result{
		Size:         size,
		BelowMinimum: size < s.cfg.MinSize,
		Calculations: calc,
	}
}

// kellyMultiplier scales the stake by the confidence-derived edge at the
// configured Kelly fraction. Confidence 50 is neutral.
func (s *Service) kellyMultiplier(confidence float64) float64 {
	edge := (confidence - 50.0) / 50.0
	if edge > 1 {
		edge = 1
	}
	if edge < -1 {
		edge = -1
	}
	return 1.0 + s.cfg.KellyFraction*edge
}

func regimeMultiplier(regime domain.VolRegime) float64 {
	switch regime {
	case domain.RegimeLow:
		return lowRegimeMultiplier
	case domain.RegimeHigh:
		return highRegimeMultiplier
	default:
		return 1.0
	}
}

func confluenceMultiplier(category confluence.Category) float64 {
	switch category {
	case confluence.CategoryHigh:
		return highConfluenceMultiplier
	case confluence.CategoryLow:
		return lowConfluenceMultiplier
	default:
		return 1.0
	}
}
