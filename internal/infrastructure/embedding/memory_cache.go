package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// MemoryCache 进程内 LRU 向量缓存，单实例部署时替代 Redis
type MemoryCache struct {
	lru   *expirable.LRU[string, []byte]
	group singleflight.Group
}

// NewMemoryCache 创建进程内缓存；size <= 0 时取 10000，ttl <= 0 表示不过期
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// GetOrLoadSafe 实现 VectorCache；ttl 由创建时决定，这里忽略。
// 调用方 ctx 取消时立即返回，共享加载继续为其他调用方运行
func (m *MemoryCache) GetOrLoadSafe(ctx context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if val, ok := m.lru.Get(key); ok {
		return val, nil
	}

	ch := m.group.DoChan(key, func() (interface{}, error) {
		if val, ok := m.lru.Get(key); ok {
			return val, nil
		}
		data, err := loader()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal cached vector: %w", err)
		}
		m.lru.Add(key, raw)
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Len 当前缓存条目数
func (m *MemoryCache) Len() int { return m.lru.Len() }
