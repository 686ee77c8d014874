package positions

import (
	"context"
	"sync"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// memoryStore keeps positions in process memory. It is the default store for
// paper-trading runs and tests.
type memoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Position
	bySignal map[string][]string // signal id -> position ids, newest last
}

// NewMemoryStore creates an in-memory position store
func NewMemoryStore() Store {
	return &memoryStore{
		byID:     make(map[string]*domain.Position),
		bySignal: make(map[string][]string),
	}
}

func (s *memoryStore) Insert(_ context.Context, pos *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pos
	s.byID[pos.ID] = &cp
	s.bySignal[pos.SignalID] = append(s.bySignal[pos.SignalID], pos.ID)
	return nil
}

func (s *memoryStore) Update(_ context.Context, pos *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[pos.ID]; !ok {
		return ErrNotFound
	}
	cp := *pos
	s.byID[pos.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pos
	return &cp, nil
}

func (s *memoryStore) GetOpenBySignalID(_ context.Context, signalID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.bySignal[signalID] {
		if pos := s.byID[id]; pos != nil && pos.Status != domain.PositionClosed {
			cp := *pos
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []*domain.Position
	for _, pos := range s.byID {
		if pos.Status != domain.PositionClosed {
			cp := *pos
			open = append(open, &cp)
		}
	}
	return open, nil
}
