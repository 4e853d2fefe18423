package device

import (
	"context"
	"sync"

	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	links map[id.UserID]map[string]Link
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{links: make(map[id.UserID]map[string]Link)}
}

func (s *InMemoryStore) Save(_ context.Context, link Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDevice, ok := s.links[link.UserID]
	if !ok {
		byDevice = make(map[string]Link)
		s.links[link.UserID] = byDevice
	}
	if _, exists := byDevice[link.DeviceID]; exists {
		return sentinel.ErrConflict
	}
	byDevice[link.DeviceID] = link
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, userID id.UserID, deviceID string) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[userID][deviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Link, 0, len(s.links[userID]))
	for _, link := range s.links[userID] {
		out = append(out, link)
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[userID][deviceID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.links[userID], deviceID)
	return nil
}
