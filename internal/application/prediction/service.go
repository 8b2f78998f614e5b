// Package prediction 实现药品推荐核心：请求校验、查询编码、相似度排序与置信度分级
package prediction

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/domain/entity"
	"drug-rec-api/pkg/logger"
	"drug-rec-api/pkg/metrics"
	"drug-rec-api/pkg/tracer"
)

// CatalogReader 只读目录视图
type CatalogReader interface {
	Ready() bool
	All() []entity.CatalogEntry
}

// Settings 推荐参数，用于统计接口展示
type Settings struct {
	DefaultTopK int        `json:"default_top_k"`
	MaxTopK     int        `json:"max_top_k"`
	Metric      Metric     `json:"metric"`
	Thresholds  Thresholds `json:"thresholds"`
	Timeout     string     `json:"timeout"`
}

// Config 服务参数
type Config struct {
	DefaultTopK int
	MaxTopK     int
	Metric      Metric
	Thresholds  Thresholds
	Timeout     time.Duration
}

// Service 推荐服务
type Service struct {
	catalog    CatalogReader
	validator  *Validator
	composer   *Composer
	ranker     *Ranker
	classifier *Classifier
	cfg        Config
}

// NewService 创建推荐服务；查询与目录必须使用同一个编码器
func NewService(cat CatalogReader, composer *Composer, cfg Config) *Service {
	return &Service{
		catalog:    cat,
		validator:  NewValidator(cfg.DefaultTopK, cfg.MaxTopK),
		composer:   composer,
		ranker:     NewRanker(cfg.Metric),
		classifier: NewClassifier(cfg.Thresholds),
		cfg:        cfg,
	}
}

// Settings 返回推荐参数
func (s *Service) Settings() Settings {
	return Settings{
		DefaultTopK: s.cfg.DefaultTopK,
		MaxTopK:     s.cfg.MaxTopK,
		Metric:      s.ranker.Metric(),
		Thresholds:  s.classifier.Thresholds(),
		Timeout:     s.cfg.Timeout.String(),
	}
}

type predictResult struct {
	resp *entity.PredictionResponse
	err  error
}

// Predict 校验 → 编码 → 排序 → 分级 → 组装；要么返回完整结果，要么整体失败
func (s *Service) Predict(ctx context.Context, raw RawRequest) (*entity.PredictionResponse, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "prediction.Predict")
	defer span.End()

	resp, err := s.predict(ctx, raw)
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	metrics.PredictionTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("prediction.results", len(resp.Predictions)))
	for _, p := range resp.Predictions {
		metrics.PredictionConfidence.WithLabelValues(string(p.Confidence)).Inc()
	}
	logger.Debug(ctx, "prediction completed",
		"results", len(resp.Predictions),
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (s *Service) predict(ctx context.Context, raw RawRequest) (*entity.PredictionResponse, error) {
	q, err := s.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	if !s.catalog.Ready() {
		return nil, catalog.ErrNotReady
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ch := make(chan predictResult, 1)
	go func() {
		resp, err := s.run(ctx, q)
		ch <- predictResult{resp: resp, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return r.resp, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, q entity.Query) (*entity.PredictionResponse, error) {
	ctx, span := tracer.Start(ctx, "prediction.Compose")
	vec, err := s.composer.Compose(ctx, q)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracer.Start(ctx, "prediction.Rank")
	entries := s.catalog.All()
	span.SetAttributes(attribute.Int("catalog.size", len(entries)), attribute.Int("prediction.top_k", q.TopK))
	ranked, err := s.ranker.Rank(vec, entries, q.TopK)
	span.End()
	if err != nil {
		return nil, err
	}

	out := &entity.PredictionResponse{Predictions: make([]entity.Prediction, len(ranked))}
	for i := range ranked {
		c := &ranked[i]
		conf, err := s.classifier.Classify(c.Score)
		if err != nil {
			return nil, err
		}
		c.Confidence = conf
		out.Predictions[i] = entity.Prediction{
			NamaObat:        c.Entry.Name,
			DeskripsiObat:   c.Entry.Description,
			SimilarityScore: c.Score,
			Confidence:      conf,
			Rank:            c.Rank,
		}
	}
	return out, nil
}

func outcome(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, catalog.ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
