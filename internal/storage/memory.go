package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps partitions in process memory. Used by tests and demos.
type MemoryStore struct {
	mu    sync.Mutex
	parts map[string][]byte
	// FailWrites makes every Write return this error when set.
	FailWrites error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{parts: map[string][]byte{}}
}

func (s *MemoryStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.parts[name]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Write(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.parts[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
