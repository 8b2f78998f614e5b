// Package eino 为 Eino 组件调用注册全局回调：追踪、指标与日志
package eino

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var initOnce sync.Once

// Init 注册 Eino 全局 callbacks（进程级一次）。
func Init() {
	initOnce.Do(func() {
		einocallbacks.AppendGlobalHandlers(Handler())
	})
}

// Handler 返回 embedding 组件的回调处理器
func Handler() einocallbacks.Handler {
	return cbtemplate.NewHandlerHelper().
		Embedding(newEmbeddingCallbackHandler()).
		Handler()
}
