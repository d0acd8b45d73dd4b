package session

import (
	"context"
	"sync"
	"time"

	"relay/internal/settings/models"
)

type entry struct {
	key       models.Key
	expiresAt time.Time
}

// InMemoryStore keeps sessions in a mutex-guarded map. Expired entries are
// treated as absent and dropped lazily.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides time.Now, for expiry tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemory(ttl time.Duration, opts ...MemoryOption) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &InMemoryStore{sessions: make(map[string]entry), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Begin(_ context.Context, moderatorID string, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[moderatorID] = entry{key: key, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) Peek(_ context.Context, moderatorID string) (models.Key, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(moderatorID)
	if !ok {
		return "", false, nil
	}
	return e.key, true, nil
}

func (s *InMemoryStore) Claim(_ context.Context, moderatorID string, key models.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(moderatorID)
	if !ok || e.key != key {
		return false, nil
	}
	delete(s.sessions, moderatorID)
	return true, nil
}

// Restore reinstates a claimed session unless a newer one was started.
func (s *InMemoryStore) Restore(_ context.Context, moderatorID string, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(moderatorID); ok {
		return nil
	}
	s.sessions[moderatorID] = entry{key: key, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) Cancel(_ context.Context, moderatorID string) (models.Key, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(moderatorID)
	if !ok {
		return "", false, nil
	}
	delete(s.sessions, moderatorID)
	return e.key, true, nil
}

// live must be called with mu held.
func (s *InMemoryStore) live(moderatorID string) (entry, bool) {
	e, ok := s.sessions[moderatorID]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.sessions, moderatorID)
		return entry{}, false
	}
	return e, true
}
