//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/config"
	"drug-rec-api/internal/interfaces/http/handler"
	"drug-rec-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		InfraSet,
		CatalogSet,
		PredictionSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InfraSet 编码器、Redis 与目录来源
var InfraSet = wire.NewSet(
	ProvideEncoder,
	ProvideRedisClientOptional,
	ProvideQueryEncoder,
	ProvideCatalogSource,
)

// CatalogSet 目录存储与初始化器
var CatalogSet = wire.NewSet(
	ProvideCatalogStore,
	catalog.NewInitializer,
)

// PredictionSet 推荐服务
var PredictionSet = wire.NewSet(
	ProvideComposer,
	ProvidePredictionService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideRateLimiter,
	ProvideSystemHandler,
	handler.NewPredictionHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
