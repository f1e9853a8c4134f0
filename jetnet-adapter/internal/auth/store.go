package auth

import (
	"context"
	"sync"
)

// TokenStore holds session pairs by SessionKey. Implementations must be safe
// for concurrent use; entries persist until deleted.
type TokenStore interface {
	Get(ctx context.Context, key string) (TokenPair, bool, error)
	Put(ctx context.Context, key string, pair TokenPair) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the process-local TokenStore.
type MemoryStore struct {
	mu    sync.RWMutex
	pairs map[string]TokenPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[string]TokenPair)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (TokenPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[key]
	return p, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, pair TokenPair) error {
	s.mu.Lock()
	s.pairs[key] = pair
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.pairs, key)
	s.mu.Unlock()
	return nil
}
