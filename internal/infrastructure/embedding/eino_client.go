package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"

	"drug-rec-api/internal/config"
)

// EinoEncoder 基于 Eino OpenAI 适配器的编码器（兼容 OpenAI embeddings 接口的服务）
type EinoEncoder struct {
	embedder  embedding.Embedder
	model     string
	dim       int
	batchSize int
}

// NewEinoEncoder 创建基于 Eino 的编码器
func NewEinoEncoder(ctx context.Context, cfg *config.EmbeddingConfig) (*EinoEncoder, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	// 使用 Eino 的 OpenAI 适配器
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return newEinoEncoder(embedder, cfg), nil
}

func newEinoEncoder(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *EinoEncoder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &EinoEncoder{
		embedder:  embedder,
		model:     cfg.Model,
		dim:       cfg.Dimension,
		batchSize: batchSize,
	}
}

func (e *EinoEncoder) Name() string   { return "openai/" + e.model }
func (e *EinoEncoder) Dimension() int { return e.dim }

// Encode 实现 Encoder，Eino 返回 float64 向量，这里转换为 float32
func (e *EinoEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	// 挂上全局 callbacks，使每批调用都产生 span 与 token 指标
	ctx = einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      e.Name(),
		Type:      "OpenAI",
		Component: components.ComponentOfEmbedding,
	})

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedder.EmbedStrings(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("eino embed strings: %w", err)
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("eino embedder returned %d vectors for %d texts", len(vecs), end-i)
		}
		for _, v := range vecs {
			out = append(out, toFloat32(v))
		}
	}
	return out, nil
}
