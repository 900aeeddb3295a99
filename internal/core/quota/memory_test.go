package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 3, 10, 15, 30, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryTryAcquire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory(core.DefaultQuotaWindow, clock.Now)
	start := clock.Now().UnixMilli()

	for i := 1; i <= 5; i++ {
		decision, err := store.TryAcquire(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d", i)
		assert.Equal(t, 5, decision.Limit)
		assert.Equal(t, 5-i, decision.Remaining)
		assert.Equal(t, start+time.Minute.Milliseconds(), decision.ResetAt)
	}

	denied, err := store.TryAcquire(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, start+time.Minute.Milliseconds(), denied.ResetAt)

	// Another identifier has its own window.
	other, err := store.TryAcquire(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, 4, other.Remaining)
}

func TestMemoryWindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory(core.QuotaWindow{Limit: 2, Duration: 10 * time.Second}, clock.Now)

	_, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	clock.Advance(4 * time.Second)
	_, err = store.TryAcquire(ctx, "id")
	require.NoError(t, err)

	decision, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Exactly one window after the first admission it has expired.
	clock.Advance(6 * time.Second)
	decision, err = store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)

	clock.Advance(20 * time.Second)
	decision, err = store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)
}

func TestMemoryDeniedCallsDoNotConsume(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory(core.QuotaWindow{Limit: 1, Duration: 10 * time.Second}, clock.Now)

	_, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		decision, err := store.TryAcquire(ctx, "id")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	}

	clock.Advance(7 * time.Second)
	decision, err := store.TryAcquire(ctx, "id")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestMemoryConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(core.DefaultQuotaWindow, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := store.TryAcquire(ctx, "burst")
			if err != nil {
				return
			}
			if decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}

func TestMemoryAdmin(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory(core.DefaultQuotaWindow, clock.Now)

	var _ Admin = store
	var _ Pinger = store

	for i := 0; i < 3; i++ {
		_, err := store.TryAcquire(ctx, "id")
		require.NoError(t, err)
	}

	view, err := store.Inspect(ctx, "id")
	require.NoError(t, err)
	assert.True(t, view.Allowed)
	assert.Equal(t, 2, view.Remaining)

	// Inspect is read-only.
	again, err := store.Inspect(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, view, again)

	require.NoError(t, store.Reset(ctx, "id"))
	view, err = store.Inspect(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, 5, view.Remaining)
	assert.Zero(t, view.ResetAt)
	assert.Equal(t, 0, store.Len())
	assert.NoError(t, store.Ping(ctx))
}

func TestMemoryErrors(t *testing.T) {
	store := NewMemory(core.DefaultQuotaWindow, nil)

	_, err := store.TryAcquire(context.Background(), "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.TryAcquire(ctx, "id")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
