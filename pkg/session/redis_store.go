package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "multipass:session:"

// RedisStore keeps sessions in Redis with a TTL matching their expiry
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis backed session store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Save stores s until its expiry
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" || s.Username == "" {
		return fmt.Errorf("session: missing id or username")
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: failed to save: %w", err)
	}
	return nil
}

// Get loads the session with id
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: failed to load: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		r.client.Del(ctx, r.key(id))
		return nil, ErrNotFound
	}
	return &s, nil
}

// Delete removes the session with id
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
