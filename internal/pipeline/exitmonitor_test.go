package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/decision"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

type stubBook struct {
	open   []*domain.Position
	closed []string
	err    error
}

func (b *stubBook) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	return b.open, b.err
}

func (b *stubBook) ClosePosition(ctx context.Context, id string, exitPrice float64) (float64, error) {
	b.closed = append(b.closed, id)
	return 1234.0, nil
}

type stubEvaluator struct {
	decisions map[string]*decision.ExitDecision
}

func (e *stubEvaluator) EvaluateExit(ctx context.Context, pos *domain.Position, currentPrice float64) *decision.ExitDecision {
	if d, ok := e.decisions[pos.ID]; ok {
		return d
	}
	return &decision.ExitDecision{Decision: decision.ActionHold, Position: pos}
}

type mapPrices struct {
	prices map[string]float64
}

func (p *mapPrices) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return 0, errors.New("no price")
	}
	return price, nil
}

func TestSweep_ClosesOnlyFiredPositions(t *testing.T) {
	book := &stubBook{open: []*domain.Position{
		{ID: "exit-me", Symbol: "SPY", EntryPrice: 4, Quantity: 10, EntryTime: time.Now()},
		{ID: "hold-me", Symbol: "QQQ", EntryPrice: 3, Quantity: 5, EntryTime: time.Now()},
	}}
	evaluator := &stubEvaluator{decisions: map[string]*decision.ExitDecision{
		"exit-me": {Decision: decision.ActionExit, Reason: decision.ProfitTarget},
	}}
	prices := &mapPrices{prices: map[string]float64{"SPY": 6.0, "QQQ": 3.1}}

	m := NewExitMonitor(book, evaluator, prices, time.Minute, nil)
	m.Sweep(context.Background())

	if len(book.closed) != 1 || book.closed[0] != "exit-me" {
		t.Errorf("closed = %v, want only exit-me", book.closed)
	}
}

func TestSweep_SkipsPositionsWithoutPrice(t *testing.T) {
	book := &stubBook{open: []*domain.Position{
		{ID: "no-price", Symbol: "IWM", EntryPrice: 2, Quantity: 5, EntryTime: time.Now()},
	}}
	evaluator := &stubEvaluator{decisions: map[string]*decision.ExitDecision{
		"no-price": {Decision: decision.ActionExit, Reason: decision.StopLoss},
	}}

	m := NewExitMonitor(book, evaluator, &mapPrices{prices: map[string]float64{}}, time.Minute, nil)
	m.Sweep(context.Background())

	if len(book.closed) != 0 {
		t.Error("a position with no observed price must wait for the next sweep")
	}
}
