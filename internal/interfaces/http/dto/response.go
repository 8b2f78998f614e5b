// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"github.com/gin-gonic/gin"
)

// Response 统一响应结构（系统类接口）
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// DetailResponse 推荐接口的错误响应：只包含 detail
type DetailResponse struct {
	Detail string `json:"detail"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(200, Response[T]{
		Code:    200,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Accepted 返回接受处理响应 (202)
func Accepted[T any](c *gin.Context, data T) {
	c.JSON(202, Response[T]{
		Code:    202,
		Message: "accepted",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Fail 返回带数据的错误响应
func Fail[T any](c *gin.Context, httpCode int, message string, data T) {
	c.JSON(httpCode, Response[T]{
		Code:    httpCode,
		Message: message,
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Detail 返回 {"detail": message} 错误并中止后续处理
func Detail(c *gin.Context, httpCode int, message string) {
	c.AbortWithStatusJSON(httpCode, DetailResponse{Detail: message})
}
