package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Store records signal fingerprints and answers duplicate checks. The
// check-and-record sequence is atomic: two near-simultaneous duplicates must
// never both pass.
type Store interface {
	// CheckAndRecord reports whether the fingerprint was observed within the
	// duplicate window. Only a non-duplicate observation is recorded; a
	// duplicate never refreshes the existing record.
	CheckAndRecord(ctx context.Context, fingerprint string, now time.Time) (bool, error)
}

// Cache suppresses duplicate inbound signals over a short window
type Cache struct {
	store Store
}

// NewCache creates a deduplication cache over the given store
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// IsDuplicate reports whether an identical signal (same source, symbol,
// timestamp, direction) was already observed within the duplicate window
func (c *Cache) IsDuplicate(ctx context.Context, sig *domain.Signal) (bool, error) {
	fp := sig.Fingerprint()
	dup, err := c.store.CheckAndRecord(ctx, fp, time.Now())
	if err != nil {
		return false, err
	}
	if dup {
		log.Debug().
			Str("tracking_id", sig.TrackingID).
			Str("fingerprint", fp[:12]).
			Msg("duplicate signal suppressed")
	}
	return dup, nil
}

// memoryStore is the in-process fingerprint store: a mutex-guarded map with a
// janitor goroutine purging entries past the expiration period.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // fingerprint -> last observation
	window  time.Duration
	expiry  time.Duration
	stop    chan struct{}
}

// NewMemoryStore creates an in-memory store with the given duplicate window
// and entry expiration
func NewMemoryStore(window, expiry time.Duration) Store {
	s := &memoryStore{
		entries: make(map[string]time.Time),
		window:  window,
		expiry:  expiry,
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *memoryStore) CheckAndRecord(_ context.Context, fingerprint string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A duplicate never refreshes the record: the window is anchored at the
	// first observation, so a steady duplicate stream still ages out. An
	// observation past the window (but before purge) starts a new window.
	last, seen := s.entries[fingerprint]
	if seen && now.Sub(last) < s.window {
		return true, nil
	}
	s.entries[fingerprint] = now
	return false, nil
}

func (s *memoryStore) janitor() {
	ticker := time.NewTicker(s.expiry / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purge(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, last := range s.entries {
		if now.Sub(last) >= s.expiry {
			delete(s.entries, fp)
		}
	}
}

// Close stops the janitor goroutine
func (s *memoryStore) Close() {
	close(s.stop)
}
