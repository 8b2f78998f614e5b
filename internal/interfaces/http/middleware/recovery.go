// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"drug-rec-api/internal/interfaces/http/dto"
	"drug-rec-api/pkg/errors"
	"drug-rec-api/pkg/logger"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", err),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				dto.Detail(c, errors.ErrInternalError.HTTPStatus, errors.ErrInternalError.Message)
			}
		}()

		c.Next()
	}
}
