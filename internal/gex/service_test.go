package gex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

type mockReader struct {
	readings []domain.GEXSignal
	err      error
}

func (m *mockReader) GetSignals(ctx context.Context, symbol, timeframe string) ([]domain.GEXSignal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.readings, nil
}

func newTestService(reader Reader) *Service {
	cfg := config.DefaultConfig().GEX
	svc := NewService(reader, &cfg)
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func reading(age time.Duration, dir domain.Direction) domain.GEXSignal {
	return domain.GEXSignal{
		Symbol:    "SPY",
		Timeframe: "1h",
		Direction: dir,
		Strength:  0.7,
		Timestamp: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func TestEffectiveWeight_PureFunctionOfAge(t *testing.T) {
	svc := newTestService(&mockReader{})

	cases := []struct {
		name string
		sig  domain.GEXSignal
		want float64
	}{
		{"fresh call", reading(time.Hour, domain.DirectionCall), 1.0},
		{"fresh put", reading(time.Hour, domain.DirectionPut), 1.0},
		{"at threshold", reading(4*time.Hour, domain.DirectionCall), 1.0},
		{"stale call", reading(5*time.Hour, domain.DirectionCall), 0.5},
		{"stale put", reading(5*time.Hour, domain.DirectionPut), 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Strength must not matter
			tc.sig.Strength = 0.1
			if got := svc.CalculateEffectiveWeight(&tc.sig); got != tc.want {
				t.Errorf("weight = %.2f, want %.2f", got, tc.want)
			}
		})
	}

	if got := svc.CalculateEffectiveWeight(nil); got != 0.0 {
		t.Errorf("nil reading must weigh 0, got %.2f", got)
	}
}

func TestIsStale(t *testing.T) {
	svc := newTestService(&mockReader{})

	fresh := reading(3*time.Hour, domain.DirectionCall)
	if svc.IsStale(&fresh) {
		t.Error("3h reading must be fresh against a 4h threshold")
	}
	stale := reading(4*time.Hour+time.Minute, domain.DirectionCall)
	if !svc.IsStale(&stale) {
		t.Error("reading past the threshold must be stale")
	}
}

func TestGetLatestSignal_AbsenceIsNotAnError(t *testing.T) {
	empty := newTestService(&mockReader{})
	if sig := empty.GetLatestSignal(context.Background(), "SPY", "1h"); sig != nil {
		t.Error("no readings must yield nil")
	}

	failing := newTestService(&mockReader{err: errors.New("feed down")})
	if sig := failing.GetLatestSignal(context.Background(), "SPY", "1h"); sig != nil {
		t.Error("fetch failure must yield nil, not panic or error")
	}
}

func TestDetectFlip(t *testing.T) {
	t.Run("flip detected", func(t *testing.T) {
		svc := newTestService(&mockReader{readings: []domain.GEXSignal{
			reading(time.Hour, domain.DirectionPut),    // latest
			reading(2*time.Hour, domain.DirectionCall), // previous
		}})
		flip := svc.DetectFlip(context.Background(), "SPY", "1h")
		if !flip.HasFlipped {
			t.Fatal("expected a flip")
		}
		if flip.CurrentDirection != domain.DirectionPut || flip.PreviousDirection != domain.DirectionCall {
			t.Errorf("expected PUT/CALL, got %s/%s", flip.CurrentDirection, flip.PreviousDirection)
		}
	})

	t.Run("no change", func(t *testing.T) {
		svc := newTestService(&mockReader{readings: []domain.GEXSignal{
			reading(time.Hour, domain.DirectionCall),
			reading(2*time.Hour, domain.DirectionCall),
		}})
		if flip := svc.DetectFlip(context.Background(), "SPY", "1h"); flip.HasFlipped {
			t.Error("same direction must not flip")
		}
	})

	t.Run("single reading", func(t *testing.T) {
		svc := newTestService(&mockReader{readings: []domain.GEXSignal{
			reading(time.Hour, domain.DirectionCall),
		}})
		if flip := svc.DetectFlip(context.Background(), "SPY", "1h"); flip.HasFlipped {
			t.Error("fewer than two readings means no flip")
		}
	})

	t.Run("reader failure", func(t *testing.T) {
		svc := newTestService(&mockReader{err: errors.New("feed down")})
		if flip := svc.DetectFlip(context.Background(), "SPY", "1h"); flip.HasFlipped {
			t.Error("fetch failure must not report a flip")
		}
	})
}
