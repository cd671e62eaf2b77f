package sso

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStateStore(t *testing.T, ttl time.Duration) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewRedisStateStore(client, ttl), mr
}

func TestNewStateToken(t *testing.T) {
	a := NewStateToken("Google")
	b := NewStateToken("Google")

	assert.True(t, strings.HasPrefix(a, "google:"))
	assert.NotEqual(t, a, b)
}

func TestStateStores(t *testing.T) {
	redisStore, _ := setupRedisStateStore(t, time.Minute)
	stores := map[string]StateStore{
		"memory": NewMemoryStateStore(100, time.Minute),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			token := NewStateToken("google")

			require.NoError(t, store.Save(ctx, token, State{Provider: "google", ReturnURL: "/page/1"}))

			st, err := store.Consume(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, "google", st.Provider)
			assert.Equal(t, "/page/1", st.ReturnURL)
			assert.False(t, st.CreatedAt.IsZero())

			_, err = store.Consume(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidState)

			_, err = store.Consume(ctx, "google:never-issued")
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestRedisStateStore_Expiry(t *testing.T) {
	store, mr := setupRedisStateStore(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "google:abc", State{Provider: "google"}))
	assert.True(t, mr.Exists("multipass:sso:state:google:abc"))
	assert.Equal(t, 30*time.Second, mr.TTL("multipass:sso:state:google:abc"))

	mr.FastForward(31 * time.Second)
	_, err := store.Consume(ctx, "google:abc")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRedisStateStore_Corrupt(t *testing.T) {
	store, mr := setupRedisStateStore(t, time.Minute)
	require.NoError(t, mr.Set("multipass:sso:state:google:bad", "{not json"))

	_, err := store.Consume(context.Background(), "google:bad")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMemoryStateStore_Expiry(t *testing.T) {
	store := NewMemoryStateStore(10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "google:abc", State{Provider: "google"}))
	time.Sleep(50 * time.Millisecond)

	_, err := store.Consume(ctx, "google:abc")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMemoryStateStore_SingleUseUnderConcurrency(t *testing.T) {
	store := NewMemoryStateStore(10, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "google:abc", State{Provider: "google"}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "google:abc"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
