package decision

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/confluence"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/risk"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/sizing"
)

// EntryAction is the outcome of an entry evaluation
type EntryAction string

const (
	ActionEnter  EntryAction = "ENTER"
	ActionReject EntryAction = "REJECT"
)

// EntryCalculations exposes every intermediate value of the confidence and
// sizing computation so decisions are diagnosable without re-deriving them
type EntryCalculations struct {
	BaseConfidence        float64             `json:"base_confidence"`
	ContextAdjustment     float64             `json:"context_adjustment"`
	PositioningAdjustment float64             `json:"positioning_adjustment"`
	GEXAdjustment         float64             `json:"gex_adjustment"`
	GEXEffectiveWeight    float64             `json:"gex_effective_weight"`
	RawConfidence         float64             `json:"raw_confidence"` // before the [0,100] clamp
	FinalConfidence       float64             `json:"final_confidence"`
	RiskMultiplier        float64             `json:"risk_multiplier"`
	Sizing                sizing.Calculations `json:"sizing"`
	FinalSize             int                 `json:"final_size"` // after the risk multiplier
}

// EntryDecision is the authoritative entry outcome with its full audit trail
type EntryDecision struct {
	Decision     EntryAction        `json:"decision"`
	Signal       *domain.Signal     `json:"signal"`
	Confidence   float64            `json:"confidence"`    // in [0,100]
	PositionSize int                `json:"position_size"` // non-negative integer
	Reasoning    []string           `json:"reasoning"`
	Calculations EntryCalculations  `json:"calculations"`
	Filters      *risk.FilterResult `json:"filters,omitempty"`
}

// ContextSource provides the current market context, normally the TTL cache
type ContextSource interface {
	GetContext(ctx context.Context) (*domain.ContextData, error)
}

// GEXSource answers gamma-exposure questions for the decision path
type GEXSource interface {
	GetLatestSignal(ctx context.Context, symbol, timeframe string) *domain.GEXSignal
	CalculateEffectiveWeight(sig *domain.GEXSignal) float64
	IsStale(sig *domain.GEXSignal) bool
	DetectFlip(ctx context.Context, symbol, timeframe string) domain.FlipResult
}

// ExposureSource reports current open notional for the max-exposure check
type ExposureSource interface {
	OpenExposure(ctx context.Context) (float64, error)
}

// Orchestrator is the single authoritative decision engine composing the
// market context, GEX, risk and sizing services into entry and exit decisions
type Orchestrator struct {
	contextSource ContextSource
	gex           GEXSource
	riskManager   *risk.Manager
	sizer         *sizing.Service
	exposure      ExposureSource

	confidence *config.ConfidenceConfig
	riskCfg    *config.RiskConfig
	sizingCfg  *config.SizingConfig
	exitCfg    *config.ExitConfig

	now func() time.Time
}

// NewOrchestrator wires the decision engine. Every collaborator is passed in
// explicitly; there is no hidden global state.
func NewOrchestrator(
	contextSource ContextSource,
	gexSource GEXSource,
	riskManager *risk.Manager,
	sizer *sizing.Service,
	exposure ExposureSource,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		contextSource: contextSource,
		gex:           gexSource,
		riskManager:   riskManager,
		sizer:         sizer,
		exposure:      exposure,
		confidence:    &cfg.Confidence,
		riskCfg:       &cfg.Risk,
		sizingCfg:     &cfg.Sizing,
		exitCfg:       &cfg.Exits,
		now:           time.Now,
	}
}

// EvaluateEntry runs the entry flow: context -> GEX (tolerant of absence) ->
// layered confidence -> clamp -> risk filters and threshold -> sizing. A
// context fetch failure rejects the signal; a GEX failure degrades to no GEX
// adjustment.
func (o *Orchestrator) EvaluateEntry(ctx context.Context, sig *domain.Signal) *EntryDecision {
	decision := &EntryDecision{
		Decision: ActionReject,
		Signal:   sig,
	}

	marketCtx, err := o.contextSource.GetContext(ctx)
	if err != nil {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("market context unavailable: %v", err))
		log.Warn().Err(err).Str("tracking_id", sig.TrackingID).Msg("entry rejected, no market context")
		return decision
	}

	filters := o.riskManager.ApplyMarketFilters(sig, marketCtx)
	decision.Filters = filters

	gexSignal := o.gex.GetLatestSignal(ctx, sig.Symbol, sig.Timeframe)

	calc := &decision.Calculations
	calc.BaseConfidence = o.confidence.Base
	calc.ContextAdjustment = o.riskManager.CalculateContextAdjustment(sig, marketCtx)
	calc.PositioningAdjustment = o.riskManager.CalculatePositioningAdjustment(sig, marketCtx)
	calc.GEXAdjustment, calc.GEXEffectiveWeight = o.gexAdjustment(sig, gexSignal, decision)

	calc.RawConfidence = calc.BaseConfidence + calc.ContextAdjustment + calc.PositioningAdjustment + calc.GEXAdjustment
	calc.FinalConfidence = clamp(calc.RawConfidence, 0, 100)
	decision.Confidence = calc.FinalConfidence

	decision.Reasoning = append(decision.Reasoning,
		fmt.Sprintf("confidence %.1f = base %.1f %+.1f context %+.1f positioning %+.1f gex",
			calc.FinalConfidence, calc.BaseConfidence, calc.ContextAdjustment,
			calc.PositioningAdjustment, calc.GEXAdjustment))

	if !filters.Passed {
		decision.Reasoning = append(decision.Reasoning, filters.RejectionReason)
		return decision
	}
	if calc.FinalConfidence < o.confidence.MinEntry {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("confidence %.1f below minimum %.1f", calc.FinalConfidence, o.confidence.MinEntry))
		return decision
	}

	if o.exposure != nil {
		open, err := o.exposure.OpenExposure(ctx)
		if err != nil {
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("exposure check failed: %v", err))
			return decision
		}
		if open >= o.riskCfg.MaxExposure {
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("open exposure %.0f at or above maximum %.0f", open, o.riskCfg.MaxExposure))
			return decision
		}
	}

	sizeResult := o.sizer.CalculateSize(calc.FinalConfidence, marketCtx, o.confluenceCategory(sig))
	calc.Sizing = sizeResult.Calculations
	calc.RiskMultiplier = filters.PositionSizeMultiplier

	// The risk multiplier gates the final decision path; it is applied after
	// the sizing chain, not merged into it.
	finalSize := int(math.Floor(float64(sizeResult.Size) * filters.PositionSizeMultiplier))
	calc.FinalSize = finalSize

	if sizeResult.BelowMinimum || finalSize < o.sizingCfg.MinSize {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("position size %d below minimum %d", finalSize, o.sizingCfg.MinSize))
		return decision
	}

	decision.Decision = ActionEnter
	decision.PositionSize = finalSize
	decision.Reasoning = append(decision.Reasoning,
		fmt.Sprintf("enter %s %s x%d", sig.Symbol, sig.Direction, finalSize))

	log.Info().
		Str("tracking_id", sig.TrackingID).
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Float64("confidence", decision.Confidence).
		Int("size", finalSize).
		Msg("entry accepted")

	return decision
}

// gexAdjustment derives the signed GEX confidence contribution, scaled by
// strength and the staleness-derived effective weight. Absence of GEX data
// yields a zero adjustment with a reasoning note, never an error.
func (o *Orchestrator) gexAdjustment(sig *domain.Signal, gexSignal *domain.GEXSignal, decision *EntryDecision) (adjustment, weight float64) {
	if gexSignal == nil {
		decision.Reasoning = append(decision.Reasoning, "no GEX input available, proceeding without GEX adjustment")
		return 0, 0
	}

	weight = o.gex.CalculateEffectiveWeight(gexSignal)
	magnitude := o.confidence.GEXAdjMax * clamp(gexSignal.Strength, 0, 1) * weight
	if gexSignal.Direction == sig.Direction {
		adjustment = magnitude
	} else {
		adjustment = -magnitude
	}

	if o.gex.IsStale(gexSignal) {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("GEX reading stale (age %s), contributing at %.0f%% weight",
				gexSignal.Age(o.now()).Round(time.Minute), weight*100))
	}
	return adjustment, weight
}

// confluenceCategory maps the signal's upstream confluence score to a sizing
// category; signals without a score size at the neutral multiplier
func (o *Orchestrator) confluenceCategory(sig *domain.Signal) confluence.Category {
	if sig.Metadata.ConfluenceScore == nil {
		return confluence.CategoryMedium
	}
	return confluence.Categorize(*sig.Metadata.ConfluenceScore)
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
