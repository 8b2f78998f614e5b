// Package embedding 提供文本编码器（Embedding）实现
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"drug-rec-api/internal/config"
)

// Encoder 将文本编码为固定维度向量
type Encoder interface {
	// Encode 批量编码，返回向量数量与 texts 一致
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension 编码器声明的向量维度
	Dimension() int
	// Name 编码器标识（provider/model）
	Name() string
}

// ErrEmptyEndpoint 远程编码器缺少地址
var ErrEmptyEndpoint = errors.New("embedding endpoint is empty")

// New 按配置创建编码器（未包含并发池与缓存）
func New(ctx context.Context, cfg *config.EmbeddingConfig) (Encoder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "hashing":
		return NewHashingEncoder(cfg.Dimension), nil
	case "http":
		return NewClient(cfg)
	case "openai":
		return NewEinoEncoder(ctx, cfg)
	case "onnx":
		return NewOnnxEncoder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Close 释放编码器持有的资源（若实现了 io.Closer）
func Close(enc Encoder) error {
	if c, ok := enc.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func checkBatch(name string, texts []string, vecs [][]float32, dim int) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("%s returned %d vectors for %d texts", name, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%s vector %d has dimension %d, want %d", name, i, len(v), dim)
		}
	}
	return nil
}
