// Package store persists moderator-editable settings.
//
// Error Contract:
//   - sentinel.ErrNotFound when a key has no stored value
//   - wrapped driver errors for infrastructure failures
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"relay/internal/settings/models"
	"relay/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[models.Key]models.Setting
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{settings: make(map[models.Key]models.Setting)}
}

// Seed inserts each default whose key is absent and returns how many were
// inserted. Existing values are never overwritten.
func (s *InMemoryStore) Seed(_ context.Context, defaults []models.Setting) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, d := range defaults {
		if _, ok := s.settings[d.Key]; ok {
			continue
		}
		s.settings[d.Key] = d
		inserted++
	}
	return inserted, nil
}

func (s *InMemoryStore) Get(_ context.Context, key models.Key) (*models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	if !ok {
		return nil, fmt.Errorf("setting %s: %w", key, sentinel.ErrNotFound)
	}
	return &v, nil
}

func (s *InMemoryStore) Set(_ context.Context, setting models.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.Key] = setting
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Setting, 0, len(s.settings))
	for _, v := range s.settings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
