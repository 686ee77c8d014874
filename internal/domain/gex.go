package domain

import "time"

// GEXSignal is a point-in-time directional gamma-exposure reading for a
// symbol/timeframe. Read-only once fetched.
type GEXSignal struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0.0-1.0 reading strength
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how old the reading is relative to now
func (g *GEXSignal) Age(now time.Time) time.Duration {
	return now.Sub(g.Timestamp)
}

// FlipResult describes a detected change in GEX direction between the two
// most recent readings for a symbol/timeframe
type FlipResult struct {
	HasFlipped        bool      `json:"has_flipped"`
	CurrentDirection  Direction `json:"current_direction,omitempty"`
	PreviousDirection Direction `json:"previous_direction,omitempty"`
}
