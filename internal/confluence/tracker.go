package confluence

import (
	"sync"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Tracker remembers recently accepted signals so agreement can be scored
// against them. Entries age out after the retention window; the pruning
// happens inline on access rather than in a background goroutine.
type Tracker struct {
	calculator *Calculator
	retention  time.Duration

	mu     sync.Mutex
	recent []trackedSignal
	now    func() time.Time
}

type trackedSignal struct {
	signal domain.Signal
	seen   time.Time
}

// NewTracker creates a tracker retaining signals for the given window
func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{
		calculator: NewCalculator(),
		retention:  retention,
		now:        time.Now,
	}
}

// Record remembers one accepted signal for future scoring
func (t *Tracker) Record(sig *domain.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	t.recent = append(t.recent, trackedSignal{signal: *sig, seen: t.now()})
}

// ScoreFor scores the signal's direction against the other recent signals
// for its symbol and timeframe. The signal itself is excluded so a lone
// signal does not trivially agree with itself.
func (t *Tracker) ScoreFor(sig *domain.Signal) *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()

	others := make([]domain.Signal, 0, len(t.recent))
	for _, tracked := range t.recent {
		if tracked.signal.TrackingID == sig.TrackingID {
			continue
		}
		others = append(others, tracked.signal)
	}
	return t.calculator.Calculate(sig.Symbol, sig.Timeframe, sig.Direction, others)
}

// prune drops aged-out entries; callers hold the lock
func (t *Tracker) prune() {
	cutoff := t.now().Add(-t.retention)
	kept := t.recent[:0]
	for _, tracked := range t.recent {
		if tracked.seen.After(cutoff) {
			kept = append(kept, tracked)
		}
	}
	t.recent = kept
}
