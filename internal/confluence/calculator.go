package confluence

import (
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Category is the coarse confluence classification
type Category string

const (
	CategoryHigh   Category = "HIGH"
	CategoryMedium Category = "MEDIUM"
	CategoryLow    Category = "LOW"
)

// Category thresholds on the weighted agreement score
const (
	highThreshold   = 0.75
	mediumThreshold = 0.50
)

// sourceWeights are the fixed reliability weights per source type
var sourceWeights = map[domain.SignalSource]float64{
	domain.SourceTradingView: 1.0,
	domain.SourceGEXScanner:  0.9,
	domain.SourceMTFScanner:  0.8,
	domain.SourceManual:      0.5,
}

// defaultWeight applies to sources without a configured reliability weight
const defaultWeight = 0.5

// Result holds the weighted agreement score with its contributing sources
type Result struct {
	Score       float64               `json:"score"` // weighted agreeing / weighted total
	Category    Category              `json:"category"`
	Agreeing    []domain.SignalSource `json:"agreeing"`
	Disagreeing []domain.SignalSource `json:"disagreeing"`
	TotalCount  int                   `json:"total_count"` // signals considered after timeframe isolation
}

// Calculator scores agreement across signal sources for a symbol/timeframe
type Calculator struct{}

// NewCalculator creates a confluence calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate scores how strongly the given direction agrees with other recent
// signals for the same symbol and the same timeframe only. Signals from a
// different timeframe (or symbol) never influence the score.
func (c *Calculator) Calculate(symbol, timeframe string, direction domain.Direction, signals []domain.Signal) *Result {
	result := &Result{Category: CategoryLow}

	var totalWeight, agreeingWeight float64
	for i := range signals {
		sig := &signals[i]
		if sig.Symbol != symbol || sig.Timeframe != timeframe {
			continue
		}
		result.TotalCount++

		weight := SourceWeight(sig.Source)
		totalWeight += weight
		if sig.Direction == direction {
			agreeingWeight += weight
			result.Agreeing = append(result.Agreeing, sig.Source)
		} else {
			result.Disagreeing = append(result.Disagreeing, sig.Source)
		}
	}

	if totalWeight == 0 {
		return result
	}

	result.Score = agreeingWeight / totalWeight
	result.Category = Categorize(result.Score)
	return result
}

// SourceWeight returns the fixed reliability weight for a source type
func SourceWeight(source domain.SignalSource) float64 {
	if w, ok := sourceWeights[source]; ok {
		return w
	}
	return defaultWeight
}

// Categorize maps a score to its coarse category
func Categorize(score float64) Category {
	switch {
	case score >= highThreshold:
		return CategoryHigh
	case score >= mediumThreshold:
		return CategoryMedium
	default:
		return CategoryLow
	}
}
