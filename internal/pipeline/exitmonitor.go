package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/decision"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
)

// ExitEvaluator runs the ordered exit checks for one position
type ExitEvaluator interface {
	EvaluateExit(ctx context.Context, pos *domain.Position, currentPrice float64) *decision.ExitDecision
}

// PositionBook is the position-manager surface the monitor drives
type PositionBook interface {
	GetOpenPositions(ctx context.Context) ([]*domain.Position, error)
	ClosePosition(ctx context.Context, id string, exitPrice float64) (float64, error)
}

// ExitMonitor periodically sweeps open positions, evaluates the exit rules
// against the latest observed price and closes positions whose rules fired.
// Positions without a price yet are skipped until the next sweep.
type ExitMonitor struct {
	book      PositionBook
	evaluator ExitEvaluator
	prices    PriceSource
	interval  time.Duration
	metrics   *metrics.Registry
}

// NewExitMonitor creates an exit monitor sweeping at the given interval
func NewExitMonitor(book PositionBook, evaluator ExitEvaluator, prices PriceSource, interval time.Duration, registry *metrics.Registry) *ExitMonitor {
	return &ExitMonitor{
		book:      book,
		evaluator: evaluator,
		prices:    prices,
		interval:  interval,
		metrics:   registry,
	}
}

// Run sweeps until ctx is cancelled
func (m *ExitMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep evaluates every open position once. Each position is independent: a
// failure on one never stops the rest of the sweep.
func (m *ExitMonitor) Sweep(ctx context.Context) {
	open, err := m.book.GetOpenPositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("exit sweep could not list open positions")
		return
	}

	for _, pos := range open {
		price, err := m.prices.LatestPrice(ctx, pos.Symbol)
		if err != nil {
			log.Debug().Str("position_id", pos.ID).Str("symbol", pos.Symbol).Msg("no price yet, skipping exit check")
			continue
		}

		result := m.evaluator.EvaluateExit(ctx, pos, price)
		if result.Decision != decision.ActionExit {
			continue
		}

		realized, err := m.book.ClosePosition(ctx, pos.ID, price)
		if err != nil {
			log.Error().
				Err(err).
				Str("position_id", pos.ID).
				Str("reason", result.Reason.String()).
				Msg("exit close failed")
			continue
		}

		if m.metrics != nil {
			m.metrics.PositionsClosed.WithLabelValues(result.Reason.String()).Inc()
		}
		log.Info().
			Str("position_id", pos.ID).
			Str("symbol", pos.Symbol).
			Str("reason", result.Reason.String()).
			Float64("realized_pnl", realized).
			Msg("position closed")
	}
}
