package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Store is the persistence boundary for positions, keyed by id and by
// originating signal id
type Store interface {
	Insert(ctx context.Context, pos *domain.Position) error
	Update(ctx context.Context, pos *domain.Position) error
	GetByID(ctx context.Context, id string) (*domain.Position, error)
	GetOpenBySignalID(ctx context.Context, signalID string) (*domain.Position, error)
	GetOpen(ctx context.Context) ([]*domain.Position, error)
}

// ErrNotFound is returned by stores when no position matches
var ErrNotFound = fmt.Errorf("position not found")

// OpenResult reports the outcome of an entry attempt
type OpenResult struct {
	Success  bool             `json:"success"`
	Position *domain.Position `json:"position,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// Manager tracks open positions, computes P&L and prevents duplicate entries
// per signal. It is the only component that mutates Position records.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a position manager over the given store
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// OpenPosition creates a position for the signal, rejecting when a non-closed
// position already exists for that signal identifier
func (m *Manager) OpenPosition(ctx context.Context, sig *domain.Signal, entryPrice float64, quantity int) (*OpenResult, error) {
	if quantity <= 0 {
		return &OpenResult{Success: false, Reason: fmt.Sprintf("invalid quantity %d", quantity)}, nil
	}
	if entryPrice <= 0 {
		return &OpenResult{Success: false, Reason: fmt.Sprintf("invalid entry price %.2f", entryPrice)}, nil
	}

	existing, err := m.store.GetOpenBySignalID(ctx, sig.TrackingID)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("duplicate-entry check failed: %w", err)
	}
	if existing != nil {
		return &OpenResult{
			Success: false,
			Reason:  fmt.Sprintf("open position %s already exists for signal %s", existing.ID, sig.TrackingID),
		}, nil
	}

	pos := &domain.Position{
		ID:         uuid.NewString(),
		SignalID:   sig.TrackingID,
		Symbol:     sig.Symbol,
		Timeframe:  sig.Timeframe,
		Direction:  sig.Direction,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryTime:  m.now(),
		Status:     domain.PositionOpen,
	}
	if err := m.store.Insert(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to persist position: %w", err)
	}

	log.Info().
		Str("position_id", pos.ID).
		Str("tracking_id", sig.TrackingID).
		Str("symbol", pos.Symbol).
		Str("direction", string(pos.Direction)).
		Int("quantity", quantity).
		Float64("entry_price", entryPrice).
		Msg("position opened")

	return &OpenResult{Success: true, Position: pos}, nil
}

// CalculateUnrealizedPnL computes (currentPrice - entryPrice) * quantity *
// contract multiplier for an open position
func (m *Manager) CalculateUnrealizedPnL(pos *domain.Position, currentPrice float64) float64 {
	return pos.PnL(currentPrice)
}

// RefreshPrice updates a position's current price and unrealized P&L.
// Closed positions are immutable and are left untouched.
func (m *Manager) RefreshPrice(ctx context.Context, id string, currentPrice float64) error {
	pos, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if pos.Status == domain.PositionClosed {
		return nil
	}

	pnl := pos.PnL(currentPrice)
	pos.CurrentPrice = &currentPrice
	pos.UnrealizedPnL = &pnl
	return m.store.Update(ctx, pos)
}

// RefreshSymbolPrice refreshes every open position on the given symbol,
// feeding from the streaming price source
func (m *Manager) RefreshSymbolPrice(ctx context.Context, symbol string, price float64) error {
	open, err := m.store.GetOpen(ctx)
	if err != nil {
		return err
	}
	for _, pos := range open {
		if pos.Symbol != symbol {
			continue
		}
		if err := m.RefreshPrice(ctx, pos.ID, price); err != nil {
			return err
		}
	}
	return nil
}

// ClosePosition closes the position at the exit price and returns the
// realized P&L, computed with the same contract-multiplier formula
func (m *Manager) ClosePosition(ctx context.Context, id string, exitPrice float64) (float64, error) {
	pos, err := m.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if pos.Status == domain.PositionClosed {
		return 0, fmt.Errorf("position %s is already closed", id)
	}

	realized := pos.PnL(exitPrice)
	now := m.now()
	pos.Status = domain.PositionClosed
	pos.ExitPrice = &exitPrice
	pos.ExitTime = &now
	pos.RealizedPnL = &realized
	if err := m.store.Update(ctx, pos); err != nil {
		return 0, fmt.Errorf("failed to persist close: %w", err)
	}

	log.Info().
		Str("position_id", pos.ID).
		Float64("exit_price", exitPrice).
		Float64("realized_pnl", realized).
		Msg("position closed")

	return realized, nil
}

// GetOpenPositions lists every open position
func (m *Manager) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	return m.store.GetOpen(ctx)
}

// GetPositionBySignal returns the open position for a signal id, or nil
func (m *Manager) GetPositionBySignal(ctx context.Context, signalID string) (*domain.Position, error) {
	pos, err := m.store.GetOpenBySignalID(ctx, signalID)
	if err == ErrNotFound {
		return nil, nil
	}
	return pos, err
}

// OpenExposure sums entry notional (entry price x quantity x contract
// multiplier) across open positions, for the max-exposure check
func (m *Manager) OpenExposure(ctx context.Context) (float64, error) {
	open, err := m.store.GetOpen(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, pos := range open {
		total += pos.EntryPrice * float64(pos.Quantity) * domain.ContractMultiplier
	}
	return total, nil
}
