package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, window core.QuotaWindow, clock *fakeClock) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store := NewRedis(client, RedisOptions{Prefix: "test:quota", Window: window, Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestRedisTryAcquire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, server := newTestRedis(t, core.DefaultQuotaWindow, clock)
	start := clock.Now().UnixMilli()

	for i := 1; i <= 5; i++ {
		decision, err := store.TryAcquire(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d", i)
		assert.Equal(t, 5-i, decision.Remaining)
		assert.Equal(t, start+time.Minute.Milliseconds(), decision.ResetAt)
		clock.Advance(time.Second)
	}

	denied, err := store.TryAcquire(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 5, denied.Limit)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, start+time.Minute.Milliseconds(), denied.ResetAt)

	members, err := server.ZMembers("test:quota:1.2.3.4")
	require.NoError(t, err)
	assert.Len(t, members, 5, "denied calls must not record entries")
	assert.Greater(t, server.TTL("test:quota:1.2.3.4"), time.Duration(0))
}

func TestRedisWindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newTestRedis(t, core.QuotaWindow{Limit: 2, Duration: 10 * time.Second}, clock)

	_, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	clock.Advance(4 * time.Second)
	_, err = store.TryAcquire(ctx, "id")
	require.NoError(t, err)

	decision, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	clock.Advance(6 * time.Second)
	decision, err = store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
}

func TestRedisConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t, core.DefaultQuotaWindow, newFakeClock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := store.TryAcquire(ctx, "burst")
			if err == nil && decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}

func TestRedisAdmin(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newTestRedis(t, core.DefaultQuotaWindow, clock)
	start := clock.Now().UnixMilli()

	for i := 0; i < 2; i++ {
		_, err := store.TryAcquire(ctx, "id")
		require.NoError(t, err)
	}

	view, err := store.Inspect(ctx, "id")
	require.NoError(t, err)
	assert.True(t, view.Allowed)
	assert.Equal(t, 3, view.Remaining)
	assert.Equal(t, start+time.Minute.Milliseconds(), view.ResetAt)

	require.NoError(t, store.Reset(ctx, "id"))
	view, err = store.Inspect(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, 5, view.Remaining)
	assert.Zero(t, view.ResetAt)

	assert.NoError(t, store.Ping(ctx))
}

func TestRedisUnreachable(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, server := newTestRedis(t, core.DefaultQuotaWindow, clock)
	server.Close()

	_, err := store.TryAcquire(ctx, "id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreUnavailable)
}

func TestParseRedisURL(t *testing.T) {
	t.Run("RedisScheme", func(t *testing.T) {
		opts, err := ParseRedisURL("redis://localhost:6380/2", "")
		require.NoError(t, err)
		assert.Equal(t, "localhost:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Nil(t, opts.TLSConfig)
	})

	t.Run("TokenFillsPassword", func(t *testing.T) {
		opts, err := ParseRedisURL("redis://localhost:6379", "secret")
		require.NoError(t, err)
		assert.Equal(t, "secret", opts.Password)
	})

	t.Run("URLPasswordWins", func(t *testing.T) {
		opts, err := ParseRedisURL("redis://:inline@localhost:6379", "secret")
		require.NoError(t, err)
		assert.Equal(t, "inline", opts.Password)
	})

	t.Run("UpstashREST", func(t *testing.T) {
		opts, err := ParseRedisURL("https://eu1-tidy-cat-12345.upstash.io", "tok")
		require.NoError(t, err)
		assert.Equal(t, "eu1-tidy-cat-12345.upstash.io:6379", opts.Addr)
		assert.Equal(t, "default", opts.Username)
		assert.Equal(t, "tok", opts.Password)
		require.NotNil(t, opts.TLSConfig)
	})

	t.Run("UpstashRESTWithoutToken", func(t *testing.T) {
		_, err := ParseRedisURL("https://eu1-tidy-cat-12345.upstash.io", "")
		assert.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ParseRedisURL("  ", "")
		assert.Error(t, err)
	})

	t.Run("OpenRedisWrapsErrors", func(t *testing.T) {
		_, err := OpenRedis("ftp://nowhere", "", RedisOptions{})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}
