package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"drug-rec-api/pkg/metrics"
)

// Pool 限制并发编码数量，并为每次调用施加独立超时
type Pool struct {
	enc     Encoder
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewPool 创建编码池；workers <= 0 时取 1，timeout <= 0 时不设超时
func NewPool(enc Encoder, workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		enc:     enc,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
	}
}

func (p *Pool) Name() string   { return p.enc.Name() }
func (p *Pool) Dimension() int { return p.enc.Dimension() }

// Unwrap 返回被包装的编码器
func (p *Pool) Unwrap() Encoder { return p.enc }

// Encode 获取令牌后调用底层编码器，并校验返回的向量数量与维度
func (p *Pool) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		metrics.EncodeTotal.WithLabelValues(p.enc.Name(), "rejected").Inc()
		return nil, fmt.Errorf("acquire encoder slot: %w", err)
	}
	defer p.sem.Release(1)

	start := time.Now()
	vecs, err := p.enc.Encode(ctx, texts)
	metrics.EncodeDuration.WithLabelValues(p.enc.Name()).Observe(time.Since(start).Seconds())
	if err == nil {
		err = checkBatch(p.enc.Name(), texts, vecs, p.enc.Dimension())
	}
	if err != nil {
		metrics.EncodeTotal.WithLabelValues(p.enc.Name(), "error").Inc()
		return nil, err
	}
	metrics.EncodeTotal.WithLabelValues(p.enc.Name(), "ok").Inc()
	return vecs, nil
}

// Close 关闭底层编码器
func (p *Pool) Close() error {
	return Close(p.enc)
}
