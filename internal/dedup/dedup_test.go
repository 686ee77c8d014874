package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

func testSignal(ts time.Time) *domain.Signal {
	return &domain.Signal{
		TrackingID: "trk-1",
		Source:     domain.SourceTradingView,
		Symbol:     "SPY",
		Direction:  domain.DirectionCall,
		Timeframe:  "5m",
		Timestamp:  ts,
	}
}

func TestIsDuplicate_WithinWindow(t *testing.T) {
	store := NewMemoryStore(60*time.Second, 5*time.Minute)
	cache := NewCache(store)
	ctx := context.Background()
	sig := testSignal(time.Now())

	dup, err := cache.IsDuplicate(ctx, sig)
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Error("first observation must not be a duplicate")
	}

	dup, err = cache.IsDuplicate(ctx, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !dup {
		t.Error("re-submission within the window must be a duplicate")
	}
}

func TestCheckAndRecord_NewWindowAfterExpiry(t *testing.T) {
	store := &memoryStore{
		entries: make(map[string]time.Time),
		window:  60 * time.Second,
		expiry:  5 * time.Minute,
		stop:    make(chan struct{}),
	}
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	if dup, _ := store.CheckAndRecord(ctx, "fp", base); dup {
		t.Error("first observation must pass")
	}
	if dup, _ := store.CheckAndRecord(ctx, "fp", base.Add(30*time.Second)); !dup {
		t.Error("observation at +30s must be a duplicate")
	}
	// Past the duplicate window the same fingerprint is treated as new
	if dup, _ := store.CheckAndRecord(ctx, "fp", base.Add(6*time.Minute)); dup {
		t.Error("observation past expiration must be treated as new")
	}
}

func TestCheckAndRecord_DuplicateDoesNotSlideWindow(t *testing.T) {
	store := &memoryStore{
		entries: make(map[string]time.Time),
		window:  60 * time.Second,
		expiry:  5 * time.Minute,
		stop:    make(chan struct{}),
	}
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	if dup, _ := store.CheckAndRecord(ctx, "fp", base); dup {
		t.Error("first observation must pass")
	}
	if dup, _ := store.CheckAndRecord(ctx, "fp", base.Add(50*time.Second)); !dup {
		t.Error("observation at +50s must be a duplicate")
	}
	// The window is anchored at the first observation; the +50s duplicate
	// must not have restarted it.
	if dup, _ := store.CheckAndRecord(ctx, "fp", base.Add(100*time.Second)); dup {
		t.Error("observation 100s after the first record must start a new window")
	}
}

func TestCheckAndRecord_NoCrossCollisions(t *testing.T) {
	store := NewMemoryStore(60*time.Second, 5*time.Minute)
	ctx := context.Background()
	ts := time.Now()

	a := testSignal(ts)
	b := testSignal(ts)
	b.Symbol = "QQQ"
	c := testSignal(ts)
	c.Direction = domain.DirectionPut

	if dup, _ := store.CheckAndRecord(ctx, a.Fingerprint(), ts); dup {
		t.Error("first signal must pass")
	}
	if dup, _ := store.CheckAndRecord(ctx, b.Fingerprint(), ts); dup {
		t.Error("different symbol must not collide")
	}
	if dup, _ := store.CheckAndRecord(ctx, c.Fingerprint(), ts); dup {
		t.Error("different direction must not collide")
	}
}

func TestCheckAndRecord_AtomicUnderConcurrency(t *testing.T) {
	store := NewMemoryStore(60*time.Second, 5*time.Minute)
	ctx := context.Background()
	now := time.Now()

	const racers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	passed := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dup, err := store.CheckAndRecord(ctx, "contended", now)
			if err != nil {
				t.Error(err)
				return
			}
			if !dup {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if passed != 1 {
		t.Errorf("exactly one concurrent observation may pass, got %d", passed)
	}
}

func TestPurge_DropsExpiredEntries(t *testing.T) {
	store := &memoryStore{
		entries: make(map[string]time.Time),
		window:  60 * time.Second,
		expiry:  5 * time.Minute,
		stop:    make(chan struct{}),
	}
	base := time.Now()
	store.entries["old"] = base.Add(-10 * time.Minute)
	store.entries["recent"] = base.Add(-30 * time.Second)

	store.purge(base)

	if _, ok := store.entries["old"]; ok {
		t.Error("expired entry must be purged")
	}
	if _, ok := store.entries["recent"]; !ok {
		t.Error("recent entry must be kept")
	}
}
