package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestCache(t *testing.T) (*Cache, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now))
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(store, logger), store, clock
}

type payload struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

func TestCached_ComputesOnceWithinTTL(t *testing.T) {
	c, _, clock := setupTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Count: calls, Label: "stats"}, nil
	}

	first, err := Cached(ctx, c, "stats", 15*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)

	clock.Advance(10 * time.Second)
	second, err := Cached(ctx, c, "stats", 15*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	clock.Advance(5 * time.Second)
	third, err := Cached(ctx, c, "stats", 15*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Count)
	assert.Equal(t, 2, calls)
}

func TestCached_ZeroTTLNeverExpires(t *testing.T) {
	c, _, clock := setupTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "value", nil
	}

	_, err := Cached(ctx, c, "forever", 0, compute)
	require.NoError(t, err)
	clock.Advance(365 * 24 * time.Hour)
	_, err = Cached(ctx, c, "forever", 0, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCached_ErrorIsNotStored(t *testing.T) {
	c, store, _ := setupTestCache(t)
	ctx := context.Background()

	boom := errors.New("row store unavailable")
	_, err := Cached(ctx, c, "stats", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Count())

	v, err := Cached(ctx, c, "stats", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCached_ConcurrentMissesMayBothCompute(t *testing.T) {
	c, _, _ := setupTestCache(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	compute := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Cached(ctx, c, "k", time.Minute, compute)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	<-started
	<-started
	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	v, err := Cached(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestCached_BackendFailureFallsThroughToCompute(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := New(failingStore{}, logger)

	v, err := Cached(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	_, store, clock := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("c"), 0))

	clock.Advance(time.Minute)
	_, ok, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 2, store.Count())
}

func TestMemoryStore_SetCopiesValue(t *testing.T) {
	_, store, _ := setupTestCache(t)
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, store.Set(ctx, "k", buf, 0))
	copy(buf, "mutated!")

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "original", string(got))
}

func TestJanitor_StopIsIdempotent(t *testing.T) {
	_, store, _ := setupTestCache(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	j := NewJanitor(store, 10*time.Millisecond, logger)
	j.Run(context.Background())
	j.Stop()
	j.Stop()
}
