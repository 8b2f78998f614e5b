package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/embedding"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drug-rec-api/internal/config"
	rediscache "drug-rec-api/internal/infrastructure/persistence/redis"
)

func norm2(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashingEncoderDeterministic(t *testing.T) {
	enc := NewHashingEncoder(64)
	ctx := context.Background()

	a, err := enc.Encode(ctx, []string{"Sakit kepala dan demam", "sakit  kepala dan DEMAM"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.Equal(t, a[0], a[1])
	assert.InDelta(t, 1.0, norm2(a[0]), 1e-5)

	b, err := enc.Encode(ctx, []string{"Sakit kepala dan demam"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestHashingEncoderEmptyTextIsZeroVector(t *testing.T) {
	vecs, err := NewHashingEncoder(16).Encode(context.Background(), []string{"  ...  "})
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm2(vecs[0]))
}

func TestHashingEncoderDefaultDimension(t *testing.T) {
	assert.Equal(t, 384, NewHashingEncoder(0).Dimension())
	assert.Equal(t, "hashing", NewHashingEncoder(0).Name())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ABC 1", NormalizeText("  ＡＢＣ\t１ "))
	assert.Equal(t, "ab", NormalizeText("a\x00b"))
}

type stubEncoder struct {
	dim   int
	calls int32
	delay time.Duration
	err   error
	vecs  func(texts []string) [][]float32

	active, peak int32
}

func (s *stubEncoder) Name() string   { return "stub" }
func (s *stubEncoder) Dimension() int { return s.dim }
func (s *stubEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	cur := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if cur <= p || atomic.CompareAndSwapInt32(&s.peak, p, cur) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.vecs != nil {
		return s.vecs(texts), nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func TestPoolBoundsConcurrency(t *testing.T) {
	stub := &stubEncoder{dim: 2, delay: 20 * time.Millisecond}
	pool := NewPool(stub, 2, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Encode(context.Background(), []string{"x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&stub.peak), int32(2))
	assert.Equal(t, int32(6), atomic.LoadInt32(&stub.calls))
}

func TestPoolTimeout(t *testing.T) {
	stub := &stubEncoder{dim: 2, delay: time.Second}
	pool := NewPool(stub, 1, 10*time.Millisecond)
	_, err := pool.Encode(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPoolRejectsMismatchedOutput(t *testing.T) {
	stub := &stubEncoder{dim: 3, vecs: func(texts []string) [][]float32 {
		return [][]float32{{1, 2}}
	}}
	_, err := NewPool(stub, 1, 0).Encode(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 2, want 3")

	_, err = NewPool(stub, 1, 0).Encode(context.Background(), []string{"x", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 1 vectors for 2 texts")
}

func TestClientEncodeBatches(t *testing.T) {
	var batches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		atomic.AddInt32(&batches, 1)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for _, text := range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(len(text)), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, Model: "m", APIKey: "secret", Dimension: 2, BatchSize: 2})
	require.NoError(t, err)
	vecs, err := c.Encode(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, int32(2), atomic.LoadInt32(&batches))
	assert.Equal(t, "http/m", c.Name())
}

func TestClientErrors(t *testing.T) {
	_, err := NewClient(&config.EmbeddingConfig{})
	assert.ErrorIs(t, err, ErrEmptyEndpoint)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, Dimension: 2})
	require.NoError(t, err)
	_, err = c.Encode(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status=502")
}

type fakeEinoEmbedder struct{}

func (fakeEinoEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.5, float64(i)}
	}
	return out, nil
}

func TestEinoEncoderConvertsToFloat32(t *testing.T) {
	enc := newEinoEncoder(fakeEinoEmbedder{}, &config.EmbeddingConfig{Model: "text-embedding-3-small", Dimension: 2, BatchSize: 1})
	vecs, err := enc.Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0}, {0.5, 0}}, vecs)
	assert.Equal(t, "openai/text-embedding-3-small", enc.Name())
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		3, 0,
		1, 0,
		100, 100,
	}
	vec := meanPool(hidden, []int64{1, 1, 0}, 2)
	assert.InDelta(t, 1.0, vec[0], 1e-6)
	assert.InDelta(t, 0.0, vec[1], 1e-6)
}

func TestCachedEncoder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	stub := &stubEncoder{dim: 2}
	enc := NewCachedEncoder(stub, rediscache.NewCache(rediscache.Wrap(rdb)), time.Minute, "test:")
	ctx := context.Background()

	first, err := enc.Encode(ctx, []string{"sakit kepala"})
	require.NoError(t, err)
	second, err := enc.Encode(ctx, []string{"sakit kepala"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
	assert.Len(t, mr.Keys(), 1)

	// 批量编码不走缓存
	_, err = enc.Encode(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls))
}

func TestCachedEncoderFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	stub := &stubEncoder{dim: 2}
	enc := NewCachedEncoder(stub, rediscache.NewCache(rediscache.Wrap(rdb)), time.Minute, "")
	vecs, err := enc.Encode(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
}

func TestCachedEncoderPropagatesEncoderError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	boom := errors.New("model down")
	enc := NewCachedEncoder(&stubEncoder{dim: 2, err: boom}, rediscache.NewCache(rediscache.Wrap(rdb)), time.Minute, "")
	_, err := enc.Encode(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestCachedEncoderWithMemoryCache(t *testing.T) {
	stub := &stubEncoder{dim: 2}
	cache := NewMemoryCache(2, time.Minute)
	enc := NewCachedEncoder(stub, cache, time.Minute, "")
	ctx := context.Background()

	for _, text := range []string{"a", "a", "b", "c", "a"} {
		_, err := enc.Encode(ctx, []string{text})
		require.NoError(t, err)
	}
	// a 在写入 c 时被淘汰，最后一次需要重新编码
	assert.Equal(t, int32(4), atomic.LoadInt32(&stub.calls))
	assert.Equal(t, 2, cache.Len())
}

func TestMemoryCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewMemoryCache(0, 0)
	boom := errors.New("boom")
	_, err := cache.GetOrLoadSafe(context.Background(), "k", 0, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())
}

// gatedEncoder 阻塞在 release 上，started 在首次调用时关闭
type gatedEncoder struct {
	dim     int
	err     error
	calls   int32
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedEncoder(dim int, err error) *gatedEncoder {
	return &gatedEncoder{dim: dim, err: err, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedEncoder) Name() string   { return "gated" }
func (g *gatedEncoder) Dimension() int { return g.dim }
func (g *gatedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&g.calls, 1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, g.dim)
		out[i][0] = 1
	}
	return out, nil
}

type encodeResult struct {
	vecs [][]float32
	err  error
}

func encodeAsync(ctx context.Context, enc Encoder, text string) <-chan encodeResult {
	ch := make(chan encodeResult, 1)
	go func() {
		vecs, err := enc.Encode(ctx, []string{text})
		ch <- encodeResult{vecs: vecs, err: err}
	}()
	return ch
}

func cacheBackends(t *testing.T) map[string]VectorCache {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]VectorCache{
		"redis":  rediscache.NewCache(rediscache.Wrap(rdb)),
		"memory": NewMemoryCache(16, time.Minute),
	}
}

func TestCachedEncoderSharedLoadSurvivesCallerCancel(t *testing.T) {
	for name, cache := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			gated := newGatedEncoder(2, nil)
			enc := NewCachedEncoder(gated, cache, time.Minute, "")

			ctxA, cancelA := context.WithCancel(context.Background())
			resA := encodeAsync(ctxA, enc, "demam tinggi")
			<-gated.started
			resB := encodeAsync(context.Background(), enc, "demam tinggi")
			time.Sleep(50 * time.Millisecond)

			cancelA()
			a := <-resA
			assert.ErrorIs(t, a.err, context.Canceled)

			close(gated.release)
			b := <-resB
			require.NoError(t, b.err)
			require.Len(t, b.vecs, 1)
			assert.Len(t, b.vecs[0], 2)
			assert.Equal(t, int32(1), atomic.LoadInt32(&gated.calls))
		})
	}
}

func TestCachedEncoderSharedEncoderErrorNotRetried(t *testing.T) {
	for name, cache := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("model down")
			gated := newGatedEncoder(2, boom)
			enc := NewCachedEncoder(gated, cache, time.Minute, "")

			resA := encodeAsync(context.Background(), enc, "batuk")
			<-gated.started
			resB := encodeAsync(context.Background(), enc, "batuk")
			time.Sleep(50 * time.Millisecond)
			close(gated.release)

			assert.ErrorIs(t, (<-resA).err, boom)
			assert.ErrorIs(t, (<-resB).err, boom)
			assert.Equal(t, int32(1), atomic.LoadInt32(&gated.calls))
		})
	}
}

func TestCachedEncoderKeyIncludesDimension(t *testing.T) {
	cache := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	small := NewCachedEncoder(NewHashingEncoder(8), cache, time.Minute, "")
	large := NewCachedEncoder(NewHashingEncoder(16), cache, time.Minute, "")
	assert.NotEqual(t, small.key("pilek"), large.key("pilek"))

	_, err := small.Encode(ctx, []string{"pilek"})
	require.NoError(t, err)
	vecs, err := large.Encode(ctx, []string{"pilek"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 16)
	assert.Equal(t, 2, cache.Len())
}

func TestNewSelectsProvider(t *testing.T) {
	enc, err := New(context.Background(), &config.EmbeddingConfig{Provider: "hashing", Dimension: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, enc.Dimension())

	_, err = New(context.Background(), &config.EmbeddingConfig{Provider: "nope"})
	assert.Error(t, err)
	_, err = New(context.Background(), &config.EmbeddingConfig{Provider: "http"})
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}
