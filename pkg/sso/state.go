package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultStateTTL bounds how long a user may take at the remote provider
const DefaultStateTTL = 10 * time.Minute

// State is what is remembered between redirecting out and coming back
type State struct {
	Provider  string    `json:"provider"`
	ReturnURL string    `json:"return_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore keeps single-use state tokens
type StateStore interface {
	Save(ctx context.Context, token string, st State) error

	// Consume returns and deletes the state. Unknown or expired tokens
	// yield ErrInvalidState.
	Consume(ctx context.Context, token string) (State, error)
}

// NewStateToken returns a fresh token namespaced to provider
func NewStateToken(provider string) string {
	return statePrefix(provider) + uuid.NewString()
}

func statePrefix(provider string) string {
	return strings.ToLower(provider) + ":"
}

// MemoryStateStore keeps state in an expiring LRU. It is meant for a
// single node and for tests.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *lru.LRU[string, State]
}

// NewMemoryStateStore creates an in-memory store holding up to size tokens
func NewMemoryStateStore(size int, ttl time.Duration) *MemoryStateStore {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{cache: lru.NewLRU[string, State](size, nil, ttl)}
}

func (s *MemoryStateStore) Save(_ context.Context, token string, st State) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(token, st)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, token string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.cache.Get(token)
	if !ok {
		return State{}, ErrInvalidState
	}
	s.cache.Remove(token)
	return st, nil
}

// RedisStateStore keeps state in Redis so any node can finish a flow
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{
		client: client,
		ttl:    ttl,
		prefix: "multipass:sso:state:",
	}
}

func (s *RedisStateStore) Save(ctx context.Context, token string, st State) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return s.client.Set(ctx, s.prefix+token, data, s.ttl).Err()
}

func (s *RedisStateStore) Consume(ctx context.Context, token string) (State, error) {
	data, err := s.client.GetDel(ctx, s.prefix+token).Bytes()
	if err == redis.Nil {
		return State{}, ErrInvalidState
	} else if err != nil {
		return State{}, fmt.Errorf("redis getdel failed: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("%w: corrupt state", ErrInvalidState)
	}
	return st, nil
}
