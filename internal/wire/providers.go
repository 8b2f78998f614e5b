package wire

import (
	"context"
	"fmt"
	"strings"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/application/prediction"
	"drug-rec-api/internal/config"
	"drug-rec-api/internal/domain/repository"
	"drug-rec-api/internal/infrastructure/embedding"
	"drug-rec-api/internal/infrastructure/persistence/file"
	"drug-rec-api/internal/infrastructure/persistence/postgres"
	"drug-rec-api/internal/infrastructure/persistence/redis"
	"drug-rec-api/internal/infrastructure/persistence/sqlite"
	"drug-rec-api/internal/interfaces/http/handler"
	"drug-rec-api/internal/interfaces/http/middleware"
	"drug-rec-api/internal/interfaces/http/router"
	"drug-rec-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	Router      *router.Router
	Store       *catalog.Store
	Initializer *catalog.Initializer
}

// QueryEncoder 查询侧编码器：与目录共用底层模型，可叠加 Redis 缓存
type QueryEncoder interface {
	embedding.Encoder
}

// ProvideEncoder 创建目录编码器，并套上并发池
func ProvideEncoder(ctx context.Context, cfg *config.Config) (embedding.Encoder, func(), error) {
	enc, err := embedding.New(ctx, &cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("create encoder: %w", err)
	}
	pool := embedding.NewPool(enc, cfg.Embedding.Workers, cfg.Embedding.Timeout)
	cleanup := func() {
		if err := embedding.Close(enc); err != nil {
			logger.Warn(ctx, "close encoder failed", "error", err.Error())
		}
	}
	return pool, cleanup, nil
}

// ProvideRedisClientOptional 启用时连接 Redis；未启用返回 nil
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideQueryEncoder 为查询编码叠加向量缓存：redis 后端需要 Redis 可用，memory 后端为进程内 LRU
func ProvideQueryEncoder(ctx context.Context, enc embedding.Encoder, client *redis.Client, cfg *config.Config) QueryEncoder {
	c := cfg.Embedding.Cache
	if !c.Enabled {
		return enc
	}
	if strings.EqualFold(c.Backend, "memory") {
		return embedding.NewCachedEncoder(enc, embedding.NewMemoryCache(c.Size, c.TTL), c.TTL, c.KeyPrefix)
	}
	if client == nil {
		logger.Warn(ctx, "embedding cache enabled without redis, cache disabled")
		return enc
	}
	return embedding.NewCachedEncoder(enc, redis.NewCache(client), c.TTL, c.KeyPrefix)
}

// ProvideCatalogSource 按 catalog.source 创建目录来源
func ProvideCatalogSource(ctx context.Context, cfg *config.Config) (repository.CatalogSource, func(), error) {
	c := cfg.Catalog
	switch strings.ToLower(c.Source) {
	case "", "file":
		return file.NewCatalogSource(c.Path, c.NameColumn, c.DescriptionColumn), func() {}, nil
	case "sqlite":
		repo, closeDB, err := openSQLite(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repo, closeDB, nil
	case "postgres":
		repo, closeDB, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repo, closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", c.Source)
	}
}

// ProvideCatalogWriter 创建可写目录仓储（导入工具使用），仅支持数据库来源
func ProvideCatalogWriter(ctx context.Context, cfg *config.Config) (repository.CatalogWriter, func(), error) {
	switch strings.ToLower(cfg.Catalog.Source) {
	case "sqlite":
		return openSQLite(ctx, cfg)
	case "postgres":
		return openPostgres(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("catalog source %q is not writable", cfg.Catalog.Source)
	}
}

func openSQLite(ctx context.Context, cfg *config.Config) (*sqlite.CatalogRepository, func(), error) {
	db, err := sqlite.Open(cfg.Database.SQLite.Path)
	if err != nil {
		return nil, nil, err
	}
	repo, err := sqlite.NewCatalogRepository(db, cfg.Catalog.Table)
	if err == nil {
		err = repo.Migrate(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, func() { _ = db.Close() }, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.CatalogRepository, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewCatalogRepository(client, cfg.Catalog.Table)
	if err := repo.AutoMigrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return repo, func() { _ = client.Close() }, nil
}

// ProvideCatalogStore 创建目录存储
func ProvideCatalogStore(enc embedding.Encoder, src repository.CatalogSource, cfg *config.Config) *catalog.Store {
	return catalog.NewStore(enc, catalog.Options{
		EmbedText: cfg.Catalog.EmbedText,
		Dedupe:    cfg.Catalog.Dedupe,
		BatchSize: cfg.Embedding.BatchSize,
		Source:    src.Name(),
	})
}

// ProvideComposer 创建查询组装器
func ProvideComposer(enc QueryEncoder, cfg *config.Config) *prediction.Composer {
	return prediction.NewComposer(enc, cfg.Prediction.Separator)
}

// ProvidePredictionService 创建推荐服务
func ProvidePredictionService(store *catalog.Store, composer *prediction.Composer, cfg *config.Config) (*prediction.Service, error) {
	p := cfg.Prediction
	metric, err := prediction.ParseMetric(p.Metric)
	if err != nil {
		return nil, err
	}
	return prediction.NewService(store, composer, prediction.Config{
		DefaultTopK: p.DefaultTopK,
		MaxTopK:     p.MaxTopK,
		Metric:      metric,
		Thresholds: prediction.Thresholds{
			HighMin:   p.Confidence.HighMin,
			MediumMin: p.Confidence.MediumMin,
		},
		Timeout: p.Timeout,
	}), nil
}

// ProvideSystemHandler 创建系统处理器
func ProvideSystemHandler(cfg *config.Config, store *catalog.Store, init *catalog.Initializer, svc *prediction.Service) *handler.SystemHandler {
	return handler.NewSystemHandler(cfg.App.Version, store, init, svc)
}

// ProvideRateLimiter 限流启用且 Redis 可用时返回限流器
func ProvideRateLimiter(ctx context.Context, client *redis.Client, cfg *config.Config) middleware.RateLimiter {
	if !cfg.Security.RateLimit.Enabled {
		return nil
	}
	if client == nil {
		logger.Warn(ctx, "rate limit enabled without redis, rate limiting disabled")
		return nil
	}
	return redis.NewRateLimiter(client)
}
