package storage

import (
	"context"
	"sync"
)

// Mem is an in-memory KV. Values do not survive a restart.
type Mem struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMem creates an empty Mem.
func NewMem() *Mem {
	return &Mem{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key, or nil if there is none.
func (s *Mem) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *Mem) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *Mem) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close is a no-op for Mem.
func (s *Mem) Close() error {
	return nil
}
