package sizing

import (
	"math"
	"testing"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/confluence"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

func newTestService(mutate func(*config.SizingConfig)) *Service {
	cfg := config.DefaultConfig().Sizing
	if mutate != nil {
		mutate(&cfg)
	}
	return NewService(&cfg)
}

func ctxWithRegime(regime domain.VolRegime) *domain.ContextData {
	return &domain.ContextData{Regime: regime}
}

func TestCalculateSize_ChainOrderAndSingleFloor(t *testing.T) {
	svc := newTestService(nil)

	// confidence 80 -> edge 0.6 -> kelly 1 + 0.25*0.6 = 1.15
	result := svc.CalculateSize(80, ctxWithRegime(domain.RegimeLow), confluence.CategoryHigh)

	calc := result.Calculations
	if calc.KellyMultiplier != 1.15 {
		t.Errorf("kelly = %.4f, want 1.15", calc.KellyMultiplier)
	}
	wantRaw := 10.0 * 1.15 * 1.2 * 1.2 // base * kelly * regime * confluence
	if math.Abs(calc.RawSize-wantRaw) > 1e-9 {
		t.Errorf("raw = %.4f, want %.4f", calc.RawSize, wantRaw)
	}
	// Intermediate values stay fractional; the floor happens once at the end
	if result.Size != int(math.Floor(wantRaw)) {
		t.Errorf("size = %d, want %d", result.Size, int(math.Floor(wantRaw)))
	}
}

func TestCalculateSize_NonNegativeIntegerWithinMax(t *testing.T) {
	svc := newTestService(func(c *config.SizingConfig) { c.MaxSize = 12 })

	cases := []struct {
		confidence float64
		regime     domain.VolRegime
		category   confluence.Category
	}{
		{0, domain.RegimeHigh, confluence.CategoryLow},
		{50, domain.RegimeNormal, confluence.CategoryMedium},
		{100, domain.RegimeLow, confluence.CategoryHigh},
	}

	for _, tc := range cases {
		result := svc.CalculateSize(tc.confidence, ctxWithRegime(tc.regime), tc.category)
		if result.Size < 0 {
			t.Errorf("size must be non-negative, got %d", result.Size)
		}
		if result.Size > 12 {
			t.Errorf("size must respect the maximum, got %d", result.Size)
		}
	}
}

func TestCalculateSize_RegimeDirection(t *testing.T) {
	svc := newTestService(nil)

	low := svc.CalculateSize(70, ctxWithRegime(domain.RegimeLow), confluence.CategoryMedium)
	normal := svc.CalculateSize(70, ctxWithRegime(domain.RegimeNormal), confluence.CategoryMedium)
	high := svc.CalculateSize(70, ctxWithRegime(domain.RegimeHigh), confluence.CategoryMedium)

	if !(low.Calculations.RawSize > normal.Calculations.RawSize && normal.Calculations.RawSize > high.Calculations.RawSize) {
		t.Errorf("low-vol must boost and high-vol reduce: %.2f / %.2f / %.2f",
			low.Calculations.RawSize, normal.Calculations.RawSize, high.Calculations.RawSize)
	}
}

func TestCalculateSize_BelowMinimumNotBumped(t *testing.T) {
	svc := newTestService(func(c *config.SizingConfig) {
		c.BaseSize = 1.0
		c.MinSize = 2
	})

	// 1.0 * sub-1 multipliers floors to 0, below the minimum of 2
	result := svc.CalculateSize(10, ctxWithRegime(domain.RegimeHigh), confluence.CategoryLow)

	if !result.BelowMinimum {
		t.Fatal("expected below-minimum result")
	}
	if result.Size >= 2 {
		t.Errorf("size must not be silently bumped to the minimum, got %d", result.Size)
	}
}
