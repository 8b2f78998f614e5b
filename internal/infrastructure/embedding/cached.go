package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"drug-rec-api/pkg/logger"
	"drug-rec-api/pkg/metrics"
)

// VectorCache 查询向量缓存（Read-Through）
type VectorCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// CachedEncoder 对单条文本编码结果做缓存；批量编码（目录加载）直接透传
type CachedEncoder struct {
	enc    Encoder
	cache  VectorCache
	ttl    time.Duration
	prefix string
}

// NewCachedEncoder 创建带缓存的编码器
func NewCachedEncoder(enc Encoder, cache VectorCache, ttl time.Duration, prefix string) *CachedEncoder {
	if prefix == "" {
		prefix = "emb:"
	}
	return &CachedEncoder{enc: enc, cache: cache, ttl: ttl, prefix: prefix}
}

func (c *CachedEncoder) Name() string   { return c.enc.Name() }
func (c *CachedEncoder) Dimension() int { return c.enc.Dimension() }

// encodeError 标记共享加载中编码器本身的失败，与缓存故障区分
type encodeError struct{ err error }

func (e *encodeError) Error() string { return e.err.Error() }
func (e *encodeError) Unwrap() error { return e.err }

// Encode 实现 Encoder；缓存不可用时回退为直接编码
//
// 同键并发请求共享一次编码，编码脱离发起者的取消信号运行，
// 每个调用方只受自己 ctx 的约束。
func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.enc.Encode(ctx, texts)
	}

	loadCtx := context.WithoutCancel(ctx)
	loaded := false
	raw, err := c.cache.GetOrLoadSafe(ctx, c.key(texts[0]), c.ttl, func() (interface{}, error) {
		loaded = true
		vecs, err := c.enc.Encode(loadCtx, texts)
		if err != nil {
			return nil, &encodeError{err: err}
		}
		if len(vecs) != 1 {
			return nil, &encodeError{err: fmt.Errorf("%s returned %d vectors for 1 text", c.enc.Name(), len(vecs))}
		}
		return vecs[0], nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var encErr *encodeError
		if errors.As(err, &encErr) {
			return nil, encErr.err
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "embedding cache unavailable, encoding directly", "error", err.Error())
		return c.enc.Encode(ctx, texts)
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		return c.enc.Encode(ctx, texts)
	}
	if loaded {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	}
	return [][]float32{vec}, nil
}

// key 由模型名、维度与文本决定，维度变化后旧向量不会被命中
func (c *CachedEncoder) key(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.enc.Name())
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, strconv.Itoa(c.enc.Dimension()))
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

// Close 关闭底层编码器
func (c *CachedEncoder) Close() error {
	return Close(c.enc)
}
