package gex

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Reader retrieves gamma-exposure readings for a symbol/timeframe, ordered
// most-recent-first. Read-only.
type Reader interface {
	GetSignals(ctx context.Context, symbol, timeframe string) ([]domain.GEXSignal, error)
}

// Service answers GEX questions for the decision path: latest reading,
// staleness, effective weight and directional flips. Missing data is never an
// error here; callers treat absence as "no GEX input available".
type Service struct {
	reader Reader
	cfg    *config.GEXConfig
	now    func() time.Time
}

// NewService creates a GEX service with the given staleness parameters
func NewService(reader Reader, cfg *config.GEXConfig) *Service {
	return &Service{reader: reader, cfg: cfg, now: time.Now}
}

// GetLatestSignal returns the most recent reading for the symbol/timeframe,
// or nil when none is available
func (s *Service) GetLatestSignal(ctx context.Context, symbol, timeframe string) *domain.GEXSignal {
	readings, err := s.reader.GetSignals(ctx, symbol, timeframe)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", timeframe).
			Msg("GEX fetch failed, proceeding without GEX input")
		return nil
	}
	if len(readings) == 0 {
		return nil
	}
	latest := readings[0]
	return &latest
}

// IsStale reports whether the reading's age exceeds the staleness threshold
func (s *Service) IsStale(sig *domain.GEXSignal) bool {
	if sig == nil {
		return true
	}
	return sig.Age(s.now()) > s.cfg.StaleThreshold()
}

// CalculateEffectiveWeight returns the reading's contribution weight: full
// weight when fresh, reduced by the configured factor when stale. Weight is a
// pure function of age, independent of direction and strength.
func (s *Service) CalculateEffectiveWeight(sig *domain.GEXSignal) float64 {
	if sig == nil {
		return 0.0
	}
	if s.IsStale(sig) {
		return 1.0 - s.cfg.StaleWeightReduction
	}
	return 1.0
}

// DetectFlip compares the two most recent readings for the symbol/timeframe.
// A flip is any change in direction between them; fewer than two readings
// means no flip.
func (s *Service) DetectFlip(ctx context.Context, symbol, timeframe string) domain.FlipResult {
	readings, err := s.reader.GetSignals(ctx, symbol, timeframe)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("GEX fetch failed during flip detection")
		return domain.FlipResult{}
	}
	if len(readings) < 2 {
		return domain.FlipResult{}
	}

	current, previous := readings[0], readings[1]
	if current.Direction == previous.Direction {
		return domain.FlipResult{
			CurrentDirection:  current.Direction,
			PreviousDirection: previous.Direction,
		}
	}
	return domain.FlipResult{
		HasFlipped:        true,
		CurrentDirection:  current.Direction,
		PreviousDirection: previous.Direction,
	}
}
