package session

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in an expiring LRU for single node
// deployments without Redis. maxTTL must cover the longest session; the
// Manager checks each session's own expiry on lookup.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.LRU[string, Session]
}

// NewMemoryStore creates a store holding up to size sessions
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	if maxTTL <= 0 {
		maxTTL = DefaultRememberTTL
	}
	return &MemoryStore{cache: lru.NewLRU[string, Session](size, nil, maxTTL)}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(s.ID, *s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(id)
	return nil
}
