package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"drug-rec-api/internal/interfaces/http/dto"
	"drug-rec-api/pkg/errors"
	"drug-rec-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	// Burst 在每秒配额之外允许的突发请求数
	Burst int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 根据请求生成限流键
type KeyFunc func(c *gin.Context) string

// RateLimit 按客户端 IP 与路径限流；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter, key KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	limit := cfg.RequestsPerSecond + max(cfg.Burst, 0)

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), key(c), limit, time.Second)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			dto.Detail(c, errors.ErrTooManyRequests.HTTPStatus, errors.ErrTooManyRequests.Message)
			return
		}

		c.Next()
	}
}
