package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/confluence"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/decision"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/gates"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/positions"
)

// Pipeline stage names, used for failure tagging and metrics
const (
	StageNormalize = "normalize"
	StageValidate  = "validate"
	StageDedupe    = "dedupe"
	StageDecision  = "decision"
	StagePersist   = "persist"
)

// Result is the structured outcome of one signal's trip through the
// pipeline. Expected rejections carry the stage and reason; they are values,
// never errors.
type Result struct {
	Success       bool                    `json:"success"`
	TrackingID    string                  `json:"tracking_id,omitempty"`
	Stage         string                  `json:"stage,omitempty"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	Decision      *decision.EntryDecision `json:"decision,omitempty"`
	Position      *domain.Position        `json:"position,omitempty"`
}

// SignalValidator runs the ordered validation sequence
type SignalValidator interface {
	Validate(sig *domain.Signal) *gates.Result
}

// Deduplicator answers whether a signal was already seen inside the window
type Deduplicator interface {
	IsDuplicate(ctx context.Context, sig *domain.Signal) (bool, error)
}

// EntryDecider produces the authoritative entry decision
type EntryDecider interface {
	EvaluateEntry(ctx context.Context, sig *domain.Signal) *decision.EntryDecision
}

// PositionOpener persists an accepted entry
type PositionOpener interface {
	OpenPosition(ctx context.Context, sig *domain.Signal, entryPrice float64, quantity int) (*positions.OpenResult, error)
}

// PriceSource supplies the entry fill price for a symbol
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// ConfluenceScorer scores a signal's agreement with other recent signals
type ConfluenceScorer interface {
	Record(sig *domain.Signal)
	ScoreFor(sig *domain.Signal) *confluence.Result
}

// Pipeline drives a signal through normalize -> validate -> dedupe ->
// decision -> persist. Each signal is an independent unit of work: a
// failure is tagged with its stage and never affects other signals.
type Pipeline struct {
	normalizer *Normalizer
	validator  SignalValidator
	dedup      Deduplicator
	confluence ConfluenceScorer
	decider    EntryDecider
	opener     PositionOpener
	prices     PriceSource
	metrics    *metrics.Registry
}

// New wires the pipeline. The confluence scorer and metrics registry may be
// nil in tests.
func New(
	normalizer *Normalizer,
	validator SignalValidator,
	dedup Deduplicator,
	scorer ConfluenceScorer,
	decider EntryDecider,
	opener PositionOpener,
	prices PriceSource,
	registry *metrics.Registry,
) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		validator:  validator,
		dedup:      dedup,
		confluence: scorer,
		decider:    decider,
		opener:     opener,
		prices:     prices,
		metrics:    registry,
	}
}

// ProcessSignal runs the full pipeline for one raw payload and returns a
// structured outcome. It never panics: unexpected internal errors are
// recovered and converted into a failure tagged with the stage where they
// occurred.
func (p *Pipeline) ProcessSignal(ctx context.Context, raw *RawPayload) (result *Result) {
	stage := StageNormalize
	result = &Result{}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Stage = stage
			result.FailureReason = fmt.Sprintf("internal error: %v", r)
			p.recordFailure(stage)
			p.recordOutcome("failed")
			log.Error().
				Str("tracking_id", result.TrackingID).
				Str("stage", stage).
				Interface("panic", r).
				Msg("signal processing recovered from panic")
		}
	}()

	sig, err := p.normalizer.Normalize(raw)
	if err != nil {
		return p.fail(result, StageNormalize, err.Error())
	}
	result.TrackingID = sig.TrackingID

	stage = StageValidate
	validation := p.validator.Validate(sig)
	if !validation.Valid {
		p.recordRejection(validation.RejectionReason)
		return p.fail(result, StageValidate, validation.RejectionReason)
	}

	stage = StageDedupe
	duplicate, err := p.dedup.IsDuplicate(ctx, sig)
	if err != nil {
		return p.fail(result, StageDedupe, fmt.Sprintf("dedup check failed: %v", err))
	}
	if duplicate {
		p.recordRejection("duplicate signal")
		return p.fail(result, StageDedupe, "duplicate signal")
	}

	stage = StageDecision
	sig = p.enrichConfluence(sig)
	entry := p.decider.EvaluateEntry(ctx, sig)
	result.Decision = entry
	if entry.Decision != decision.ActionEnter {
		// A REJECT decision is a completed evaluation, not a stage failure;
		// the reasoning lives on the decision itself.
		result.Success = true
		p.recordOutcome("rejected")
		log.Info().
			Str("tracking_id", sig.TrackingID).
			Str("symbol", sig.Symbol).
			Msg("signal evaluated, entry rejected")
		return result
	}

	stage = StagePersist
	price, err := p.prices.LatestPrice(ctx, sig.Symbol)
	if err != nil {
		return p.fail(result, StagePersist, fmt.Sprintf("no entry price for %s: %v", sig.Symbol, err))
	}
	opened, err := p.opener.OpenPosition(ctx, sig, price, entry.PositionSize)
	if err != nil {
		return p.fail(result, StagePersist, fmt.Sprintf("position write failed: %v", err))
	}
	if !opened.Success {
		return p.fail(result, StagePersist, opened.Reason)
	}

	result.Success = true
	result.Position = opened.Position
	p.recordOutcome("entered")
	if p.metrics != nil {
		p.metrics.PositionsOpened.Inc()
	}
	log.Info().
		Str("tracking_id", sig.TrackingID).
		Str("position_id", opened.Position.ID).
		Str("symbol", sig.Symbol).
		Int("quantity", opened.Position.Quantity).
		Msg("signal processed, position opened")
	return result
}

// enrichConfluence records the signal for future agreement scoring and, when
// the sender attached no confluence score, fills one in from the other
// recent signals. The upstream score always wins when present.
func (p *Pipeline) enrichConfluence(sig *domain.Signal) *domain.Signal {
	if p.confluence == nil {
		return sig
	}
	p.confluence.Record(sig)
	if sig.Metadata.ConfluenceScore != nil {
		return sig
	}

	agreement := p.confluence.ScoreFor(sig)
	if agreement.TotalCount == 0 {
		return sig
	}

	enriched := *sig
	score := agreement.Score
	enriched.Metadata.ConfluenceScore = &score
	log.Debug().
		Str("tracking_id", sig.TrackingID).
		Float64("score", score).
		Int("signals_considered", agreement.TotalCount).
		Msg("confluence score computed from recent signals")
	return &enriched
}

func (p *Pipeline) fail(result *Result, stage, reason string) *Result {
	result.Success = false
	result.Stage = stage
	result.FailureReason = reason
	p.recordFailure(stage)
	p.recordOutcome("failed")
	log.Warn().
		Str("tracking_id", result.TrackingID).
		Str("stage", stage).
		Str("reason", reason).
		Msg("signal rejected")
	return result
}

func (p *Pipeline) recordFailure(stage string) {
	if p.metrics != nil {
		p.metrics.RecordStageFailure(stage)
	}
}

func (p *Pipeline) recordOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.SignalsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) recordRejection(reason string) {
	if p.metrics != nil {
		p.metrics.Rejections.WithLabelValues(reason).Inc()
	}
}
