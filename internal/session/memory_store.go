package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process fallback used when no Redis URL is
// configured. Expired entries are dropped lazily on Load.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	state     PagerState
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryStore{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, messageID int64, state PagerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[messageID] = memoryEntry{state: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, messageID int64) (PagerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[messageID]
	if !ok {
		return PagerState{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, messageID)
		return PagerState{}, ErrNotFound
	}
	return entry.state, nil
}

func (s *MemoryStore) Delete(_ context.Context, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, messageID)
	return nil
}
