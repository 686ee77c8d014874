package domain

import "time"

// ContractMultiplier is the standard US equity options contract multiplier
const ContractMultiplier = 100.0

// PositionStatus tracks the lifecycle of a position. Positions are closed
// logically, never physically removed.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is a tracked options holding. Only the position manager mutates
// it (price refresh, close); closed positions are immutable afterward.
type Position struct {
	ID            string         `json:"id" db:"id"`
	SignalID      string         `json:"signal_id" db:"signal_id"` // originating signal tracking ID
	Symbol        string         `json:"symbol" db:"symbol"`
	Timeframe     string         `json:"timeframe" db:"timeframe"` // originating signal's timeframe, drives GEX flip checks
	Direction     Direction      `json:"direction" db:"direction"`
	Quantity      int            `json:"quantity" db:"quantity"`
	EntryPrice    float64        `json:"entry_price" db:"entry_price"`
	EntryTime     time.Time      `json:"entry_time" db:"entry_time"`
	CurrentPrice  *float64       `json:"current_price,omitempty" db:"current_price"`
	UnrealizedPnL *float64       `json:"unrealized_pnl,omitempty" db:"unrealized_pnl"`
	Status        PositionStatus `json:"status" db:"status"`
	ExitPrice     *float64       `json:"exit_price,omitempty" db:"exit_price"`
	ExitTime      *time.Time     `json:"exit_time,omitempty" db:"exit_time"`
	RealizedPnL   *float64       `json:"realized_pnl,omitempty" db:"realized_pnl"`
}

// HoldingTime returns how long the position has been held
func (p *Position) HoldingTime(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// PnL computes profit and loss against the given price using the standard
// contract multiplier: (price - entry) * quantity * 100.
func (p *Position) PnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Quantity) * ContractMultiplier
}
