package decision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// ExitAction is the outcome of an exit evaluation
type ExitAction string

const (
	ActionExit ExitAction = "EXIT"
	ActionHold ExitAction = "HOLD"
)

// ExitReason identifies which exit rule fired, in priority order
type ExitReason int

const (
	NoExit ExitReason = iota
	ProfitTarget
	StopLoss
	GEXFlip
	TimeLimit
)

func (r ExitReason) String() string {
	switch r {
	case NoExit:
		return "no_exit"
	case ProfitTarget:
		return "profit_target"
	case StopLoss:
		return "stop_loss"
	case GEXFlip:
		return "gex_flip"
	case TimeLimit:
		return "time_limit"
	default:
		return "unknown"
	}
}

// ExitCalculations records the fresh P&L and which exit checks fired
type ExitCalculations struct {
	CurrentPrice  float64         `json:"current_price"`
	UnrealizedPnL float64         `json:"unrealized_pnl"`
	PnLPercent    float64         `json:"pnl_percent"` // of entry notional
	HoursHeld     float64         `json:"hours_held"`
	ChecksFired   map[string]bool `json:"checks_fired"`
}

// ExitDecision is the exit outcome for one position
type ExitDecision struct {
	Decision     ExitAction       `json:"decision"`
	Position     *domain.Position `json:"position"`
	Reason       ExitReason       `json:"reason"`
	Reasoning    []string         `json:"reasoning"`
	Calculations ExitCalculations `json:"calculations"`
}

// EvaluateExit runs the exit checks in fixed priority order (profit target,
// stop loss, GEX flip against the held direction, maximum hold time) and the
// first match wins. Ties resolve by this order, never by magnitude.
func (o *Orchestrator) EvaluateExit(ctx context.Context, pos *domain.Position, currentPrice float64) *ExitDecision {
	now := o.now()
	pnl := pos.PnL(currentPrice)
	entryNotional := pos.EntryPrice * float64(pos.Quantity) * domain.ContractMultiplier

	var pnlPct float64
	if entryNotional != 0 {
		pnlPct = pnl / entryNotional * 100.0
	}
	held := pos.HoldingTime(now)

	decision := &ExitDecision{
		Decision: ActionHold,
		Position: pos,
		Reason:   NoExit,
		Calculations: ExitCalculations{
			CurrentPrice:  currentPrice,
			UnrealizedPnL: pnl,
			PnLPercent:    pnlPct,
			HoursHeld:     held.Hours(),
			ChecksFired:   make(map[string]bool),
		},
	}

	flip := o.gex.DetectFlip(ctx, pos.Symbol, pos.Timeframe)
	flippedAgainst := flip.HasFlipped && flip.CurrentDirection != pos.Direction

	// Every check is evaluated and recorded; the first in order decides.
	fired := decision.Calculations.ChecksFired
	fired[ProfitTarget.String()] = pnlPct >= o.exitCfg.ProfitTargetPct
	fired[StopLoss.String()] = pnlPct <= -o.exitCfg.StopLossPct
	fired[GEXFlip.String()] = flippedAgainst
	fired[TimeLimit.String()] = held >= o.exitCfg.MaxHold()

	switch {
	case fired[ProfitTarget.String()]:
		decision.Reason = ProfitTarget
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("profit target reached: %.1f%% >= %.1f%%", pnlPct, o.exitCfg.ProfitTargetPct))
	case fired[StopLoss.String()]:
		decision.Reason = StopLoss
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("stop loss breached: %.1f%% <= -%.1f%%", pnlPct, o.exitCfg.StopLossPct))
	case fired[GEXFlip.String()]:
		decision.Reason = GEXFlip
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("GEX flipped %s -> %s against held %s",
				flip.PreviousDirection, flip.CurrentDirection, pos.Direction))
	case fired[TimeLimit.String()]:
		decision.Reason = TimeLimit
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("held %.1fh, exceeds maximum %.1fh", held.Hours(), o.exitCfg.MaxHoldHours))
	default:
		decision.Reasoning = append(decision.Reasoning, "no exit condition met")
		return decision
	}

	decision.Decision = ActionExit
	log.Info().
		Str("position_id", pos.ID).
		Str("reason", decision.Reason.String()).
		Float64("pnl", pnl).
		Msg("exit triggered")

	return decision
}
