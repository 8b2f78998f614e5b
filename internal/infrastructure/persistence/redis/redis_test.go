package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestHealthCheck(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestCacheGetOrLoadSafe(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c)
	ctx := context.Background()

	var calls int32
	loader := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{0.5, 0.25}, nil
	}

	raw, err := cache.GetOrLoadSafe(ctx, "emb:k", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5,0.25]`, string(raw))
	assert.True(t, mr.Exists("emb:k"))

	raw, err = cache.GetOrLoadSafe(ctx, "emb:k", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5,0.25]`, string(raw))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	got, err := cache.Get(ctx, "emb:k")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	require.NoError(t, cache.Delete(ctx, "emb:k"))
	_, err = cache.Get(ctx, "emb:k")
	assert.True(t, IsNil(err))
}

func TestCacheLoaderErrorNotCached(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c)
	boom := errors.New("boom")

	_, err := cache.GetOrLoadSafe(context.Background(), "emb:x", time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("emb:x"))
}

func TestCacheConcurrentLoadsShareResult(t *testing.T) {
	c, _ := newTestClient(t)
	cache := NewCache(c)

	var calls int32
	release := make(chan struct{})
	loader := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []float32{1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrLoadSafe(context.Background(), "emb:same", time.Minute, loader)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestCacheCallerCancelKeepsSharedLoad(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c)

	started := make(chan struct{})
	release := make(chan struct{})
	loader := func() (interface{}, error) {
		close(started)
		<-release
		return []float32{1}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.GetOrLoadSafe(ctx, "emb:cancel", time.Minute, loader)
		errCh <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return mr.Exists("emb:cancel") }, time.Second, 10*time.Millisecond)
}

func TestRateLimiterAllow(t *testing.T) {
	c, _ := newTestClient(t)
	limiter := NewRateLimiter(c)
	ctx := context.Background()
	key := BuildRateLimitKey("10.0.0.1", "/predict")
	assert.Equal(t, "ratelimit:10.0.0.1:/predict", key)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, key))
	ok, err = limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterRedisDown(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()
	_, err := NewRateLimiter(c).Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
}
