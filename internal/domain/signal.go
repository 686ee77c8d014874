package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Direction represents the options-equivalent trade direction
type Direction string

const (
	DirectionCall Direction = "CALL" // long-call-equivalent (bullish)
	DirectionPut  Direction = "PUT"  // long-put-equivalent (bearish)
)

// Valid reports whether the direction is one of the two recognized values
func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// Opposite returns the opposing direction
func (d Direction) Opposite() Direction {
	if d == DirectionCall {
		return DirectionPut
	}
	return DirectionCall
}

// SignalSource identifies the upstream origin of a signal
type SignalSource string

const (
	SourceTradingView SignalSource = "tradingview"
	SourceGEXScanner  SignalSource = "gex_scanner"
	SourceMTFScanner  SignalSource = "mtf_scanner"
	SourceManual      SignalSource = "manual"
)

// KnownSources lists every source the normalizer accepts
var KnownSources = []SignalSource{SourceTradingView, SourceGEXScanner, SourceMTFScanner, SourceManual}

// Valid reports whether the source is one of the known origins
func (s SignalSource) Valid() bool {
	for _, known := range KnownSources {
		if s == known {
			return true
		}
	}
	return false
}

// SignalMetadata is the typed optional side-channel attached to a signal.
// Nil pointers mean "not provided upstream"; validators must treat absence
// explicitly rather than defaulting.
type SignalMetadata struct {
	ConfluenceScore *float64 `json:"confluence_score,omitempty"` // 0.0-1.0 agreement score computed upstream
	MTFAligned      *bool    `json:"mtf_aligned,omitempty"`      // multi-timeframe alignment flag
	Strength        *float64 `json:"strength,omitempty"`         // source-reported signal strength
}

// Signal is an immutable inbound trading event. It is created once by the
// normalizer and never mutated by downstream stages.
type Signal struct {
	TrackingID string         `json:"tracking_id"` // assigned at ingestion, carried through every stage
	Source     SignalSource   `json:"source"`
	Symbol     string         `json:"symbol"`
	Direction  Direction      `json:"direction"`
	Timeframe  string         `json:"timeframe"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   SignalMetadata `json:"metadata"`
}

// Age returns how old the signal is relative to now
func (s *Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Fingerprint returns the deduplication key for this signal. It is a
// deterministic function of (source, symbol, timestamp, direction) only;
// timeframe and metadata never contribute.
func (s *Signal) Fingerprint() string {
	raw := fmt.Sprintf("%s|%s|%d|%s", s.Source, s.Symbol, s.Timestamp.Unix(), s.Direction)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
